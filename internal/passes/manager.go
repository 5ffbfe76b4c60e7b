package passes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tensorvm/tcbridge/internal/ir"
)

// Pass is a named module transformation. Run mutates the module in
// place and returns a diagnostic error on rejection.
type Pass struct {
	Name string
	Run  func(*ir.Module) error
}

var registry = map[string]Pass{}

// Register adds a pass to the process-wide registry. Called from init
// by each pass implementation; duplicate names are a programming error.
func Register(p Pass) {
	if _, dup := registry[p.Name]; dup {
		panic(fmt.Sprintf("passes: duplicate registration of %q", p.Name))
	}
	registry[p.Name] = p
}

// Names returns all registered pass names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PassError reports which pass rejected the module, preserving the
// pass's own diagnostic unchanged.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %q: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// Manager is a single pass-manager session: an ordered pass list
// resolved from a pipeline string. It is cheap to construct and is not
// reused across lowering runs.
type Manager struct {
	passes   []Pass
	pipeline string
}

// ParsePipeline resolves a comma-joined pipeline string ("a,b,c")
// against the registry. Unknown pass names fail resolution; order is
// preserved exactly.
func ParsePipeline(pipeline string) (*Manager, error) {
	var resolved []Pass
	for _, name := range strings.Split(pipeline, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown pass %q in pipeline %q", name, pipeline)
		}
		resolved = append(resolved, p)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("empty pipeline %q", pipeline)
	}
	return &Manager{passes: resolved, pipeline: pipeline}, nil
}

// Pipeline returns the resolved pipeline description.
func (m *Manager) Pipeline() string {
	names := make([]string, len(m.passes))
	for i, p := range m.passes {
		names[i] = p.Name
	}
	return strings.Join(names, ",")
}

// Run executes the passes in order. The first failure stops the run
// and is returned as a *PassError; the module must then be discarded,
// as earlier passes have already mutated it.
func (m *Manager) Run(mod *ir.Module) error {
	for _, p := range m.passes {
		if err := p.Run(mod); err != nil {
			return &PassError{Pass: p.Name, Err: err}
		}
	}
	return nil
}
