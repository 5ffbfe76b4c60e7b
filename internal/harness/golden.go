package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes the scenario at path and compares the run
// snapshot against testdata/{name}.golden, where name is the
// scenario name suffixed with the runner's driver when it is not the
// default.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r Runner, path string) {
	t.Helper()

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	snap, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}

	// Shape strings like tensor<3xf32> must stay literal in the golden
	// files, so disable the encoder's HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	data := buf.Bytes()

	name := s.Name
	if r.Driver != "" && r.Driver != "vm" {
		name += "_" + r.Driver
	}
	g := goldie.New(t)
	g.Assert(t, name, data)
}
