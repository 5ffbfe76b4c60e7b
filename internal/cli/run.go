package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tensorvm/tcbridge/internal/bridge"
	"github.com/tensorvm/tcbridge/internal/invoke"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/numeric"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// artifactMagic marks a serialized artifact file; anything else is
// treated as module source.
var artifactMagic = []byte("TCAF")

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Target string
	Driver string
	Config string
	Args   string
}

// argSpec is one function argument in a YAML args file. Omitting dims
// makes a scalar.
type argSpec struct {
	DType string    `yaml:"dtype"`
	Dims  []int     `yaml:"dims"`
	Data  []float64 `yaml:"data"`
}

// argsFile is the top-level YAML args document.
type argsFile struct {
	Args []argSpec `yaml:"args"`
}

// resultJSON is one function result in JSON output.
type resultJSON struct {
	Shape string `json:"shape"`
	Data  any    `json:"data"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <module.ir|module.tcaf> <function>",
		Short: "Compile, load, and invoke one function of a module",
		Long: `Run a function of a tensor module end to end: compile (unless the
input is already a serialized artifact), load under the configured
execution driver, and invoke with the arguments from --args.

The args file is YAML, one entry per argument:

  args:
    - dtype: f32
      dims: [2, 2]
      data: [1, 2, 3, 4]
    - dtype: f32
      data: [2.5]        # no dims makes a scalar

Example:
  bridgec run --args inputs.yaml model.ir add
  bridgec run --driver wazero --target wasm model.ir add`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "code generation target")
	cmd.Flags().StringVarP(&opts.Driver, "driver", "d", "", "execution driver")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE build configuration file")
	cmd.Flags().StringVar(&opts.Args, "args", "", "YAML file with function arguments")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, inputPath, function string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadBuildConfig(opts.Config)
	if err != nil {
		return fail(formatter, ErrCodeConfig, err)
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}

	args, err := loadArgs(opts.Args)
	if err != nil {
		return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
	}

	input, err := os.ReadFile(inputPath)
	if err != nil {
		return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
	}

	b := bridge.New(bridge.Options{
		Target:   cfg.Target,
		Driver:   cfg.Driver,
		Pipeline: cfg.Pipeline,
		DumpIR:   cfg.DumpIR,
	})

	artifact := input
	if !bytes.HasPrefix(input, artifactMagic) {
		formatter.VerboseLog("compiling %s", inputPath)
		artifact, err = b.CompileSource(string(input))
		if err != nil {
			return fail(formatter, stageCode(err), err)
		}
	}

	mod, err := b.Load(ctx, artifact)
	if err != nil {
		return fail(formatter, ErrCodeLoad, err)
	}
	defer mod.Close(ctx)

	// The base layer suffices here: arguments are already runtime
	// arrays and results print directly.
	inv := invoke.NewModuleInvoker(mod.Instance())
	result, err := inv.Call(ctx, function, args...)
	if err != nil {
		code := ErrCodeInvoke
		if runtime.IsLookupError(err) {
			code = ErrCodeLookup
		}
		return fail(formatter, code, err)
	}

	return outputResult(formatter, result)
}

func loadArgs(path string) ([]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read args: %w", err)
	}
	var doc argsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	out := make([]any, len(doc.Args))
	for i, spec := range doc.Args {
		dtype, err := ir.ParseDType(spec.DType)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		shape := ir.TensorOf(dtype, spec.Dims...)
		if shape.Elems() != len(spec.Data) {
			return nil, fmt.Errorf("arg %d: %d data values for shape %s (want %d)",
				i, len(spec.Data), shape, shape.Elems())
		}
		out[i] = numeric.FromLiteral(shape, spec.Data)
	}
	return out, nil
}

func outputResult(f *OutputFormatter, result any) error {
	if f.Format == "json" {
		return f.Success(resultsToJSON(result))
	}
	switch r := result.(type) {
	case nil:
		return f.Success("ok (no results)")
	case *numeric.Array:
		return f.Success(r)
	case []any:
		for i, v := range r {
			fmt.Fprintf(f.Writer, "result %d: %v\n", i, v)
		}
		return nil
	}
	return f.Success(result)
}

func resultsToJSON(result any) any {
	switch r := result.(type) {
	case nil:
		return nil
	case *numeric.Array:
		return resultJSON{Shape: r.Shape().String(), Data: r.Data()}
	case []any:
		out := make([]any, len(r))
		for i, v := range r {
			out[i] = resultsToJSON(v)
		}
		return out
	}
	return result
}
