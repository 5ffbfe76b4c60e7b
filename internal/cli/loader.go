package cli

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// BuildConfig is the CUE build configuration shared by compile and
// run. All fields are optional; the zero value selects the defaults.
//
// The file carries a single "build" struct:
//
//	build: {
//		target:   "wasm"
//		driver:   "wazero"
//		pipeline: "canonicalize,verify-tensors,lower-linkage"
//		dumpIR:   true
//	}
type BuildConfig struct {
	Target   string `json:"target"`
	Driver   string `json:"driver"`
	Pipeline string `json:"pipeline"`
	DumpIR   bool   `json:"dumpIR"`
}

// LoadBuildConfig reads and validates a CUE build configuration file.
// An empty path returns the zero config.
func LoadBuildConfig(path string) (BuildConfig, error) {
	var cfg BuildConfig
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cfg, fmt.Errorf("compile config: %w", err)
	}

	buildVal := value.LookupPath(cue.ParsePath("build"))
	if !buildVal.Exists() {
		return cfg, fmt.Errorf("config %s has no build section", path)
	}
	if err := buildVal.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Target != "" && !slices.Contains(codegen.TargetNames(), cfg.Target) {
		return cfg, fmt.Errorf("config names unknown target %q (have %v)", cfg.Target, codegen.TargetNames())
	}
	if cfg.Driver != "" && !slices.Contains(runtime.DriverNames(), cfg.Driver) {
		return cfg, fmt.Errorf("config names unknown driver %q (have %v)", cfg.Driver, runtime.DriverNames())
	}
	return cfg, nil
}
