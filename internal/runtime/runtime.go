// Package runtime loads compiled artifacts into live module instances
// and invokes their exported functions.
//
// Each Load call constructs a fresh runtime configuration and an
// independent instance; instances share no mutable state and are never
// pooled or reused across loads. An instance's lifetime ends when it
// is garbage collected with its owning driver state (the wazero driver
// additionally supports explicit Close).
//
// Whether concurrent invocations of one instance are safe is the
// executing driver's contract: the vm driver allocates per-call state
// and is safe; the wazero driver serializes calls over its scratch
// memory internally.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/numeric"
)

// DefaultDriver is the execution driver used when the configuration
// does not name another.
const DefaultDriver = "vm"

// Config selects the execution driver for one load. Constructed fresh
// per load; never shared or cached.
type Config struct {
	Driver string
}

func (c Config) driver() string {
	if c.Driver == "" {
		return DefaultDriver
	}
	return c.Driver
}

// driver starts runtime instances for artifacts of one target backend.
type driver interface {
	name() string
	load(ctx context.Context, art *artifact.Artifact) (program, error)
}

// program is a driver's loaded, executable form of an artifact.
type program interface {
	invoke(ctx context.Context, abi artifact.FuncABI, args []*numeric.Array) ([]*numeric.Array, error)
	close(ctx context.Context) error
}

var drivers = map[string]driver{
	vmDriver{}.name():     vmDriver{},
	wazeroDriver{}.name(): wazeroDriver{},
}

// DriverNames returns all registered driver names, sorted.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instance is a live, loaded module: the handle function lookups and
// invocations go through.
type Instance struct {
	id   string
	art  *artifact.Artifact
	prog program
}

// Load deserializes a compiled artifact and loads it into a fresh
// runtime instance under the configured driver. Malformed or
// incompatible artifacts fail with a *LoadError; no format validation
// happens beyond what decoding and the driver enforce.
func Load(ctx context.Context, data []byte, cfg Config) (*Instance, error) {
	name := cfg.driver()
	d, ok := drivers[name]
	if !ok {
		return nil, &LoadError{Driver: name, Diagnostic: fmt.Sprintf("unknown execution driver (have %v)", DriverNames())}
	}
	art, err := artifact.Decode(data)
	if err != nil {
		return nil, &LoadError{Driver: name, Diagnostic: err.Error()}
	}
	prog, err := d.load(ctx, art)
	if err != nil {
		return nil, &LoadError{Driver: name, Diagnostic: err.Error()}
	}
	inst := &Instance{id: uuid.NewString(), art: art, prog: prog}
	slog.Debug("module loaded",
		"instance", inst.id,
		"driver", name,
		"target", art.Target,
		"functions", len(art.Funcs))
	return inst, nil
}

// ID returns the unique identity of this instance.
func (i *Instance) ID() string { return i.id }

// FunctionNames returns the exported function names, in artifact
// order.
func (i *Instance) FunctionNames() []string {
	return i.art.FunctionNames()
}

// Function resolves an exported function by exact name. Resolution is
// fresh on every call; a missing name is a *LookupError.
func (i *Instance) Function(name string) (*Function, error) {
	abi, ok := i.art.ABI(name)
	if !ok {
		return nil, &LookupError{Function: name}
	}
	return &Function{inst: i, abi: abi}, nil
}

// Close releases driver resources. The instance must not be used
// afterwards. Optional: an unclosed instance is reclaimed with its
// driver state by the garbage collector.
func (i *Instance) Close(ctx context.Context) error {
	return i.prog.close(ctx)
}

// Function is an invocable export of a loaded module, bound to one
// (instance, name) pair.
type Function struct {
	inst *Instance
	abi  artifact.FuncABI
}

// Name returns the function's source-level name.
func (f *Function) Name() string { return f.abi.Name }

// NumResults returns the declared result count.
func (f *Function) NumResults() int { return len(f.abi.Results) }

// Invoke runs the function with positional arguments. Arguments are
// numeric arrays or Go scalars (coerced to rank-zero arrays); they
// must match the declared parameter types exactly. Results come back
// as one array per declared result, in declaration order.
func (f *Function) Invoke(ctx context.Context, args ...any) ([]*numeric.Array, error) {
	if len(args) != len(f.abi.Params) {
		return nil, fmt.Errorf("function %q takes %d arguments, got %d", f.abi.Name, len(f.abi.Params), len(args))
	}
	arrays := make([]*numeric.Array, len(args))
	for i, arg := range args {
		a, err := numeric.Coerce(arg)
		if err != nil {
			return nil, fmt.Errorf("function %q argument %d: %w", f.abi.Name, i, err)
		}
		if !a.Shape().Equal(f.abi.Params[i]) {
			return nil, fmt.Errorf("function %q argument %d: have %s, want %s",
				f.abi.Name, i, a.Shape(), f.abi.Params[i])
		}
		arrays[i] = a
	}
	return f.inst.prog.invoke(ctx, f.abi, arrays)
}
