package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tensorvm/tcbridge/internal/bridge"
	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/lower"
	"github.com/tensorvm/tcbridge/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Target string
	Output string
	Config string
	Cache  string
}

// CompileResult is the success payload of the compile command.
type CompileResult struct {
	Output string `json:"output"`
	Target string `json:"target"`
	Bytes  int    `json:"bytes"`
	Cached bool   `json:"cached"`
}

func (r CompileResult) String() string {
	suffix := ""
	if r.Cached {
		suffix = ", cached"
	}
	return fmt.Sprintf("wrote %s (%d bytes, target %s%s)", r.Output, r.Bytes, r.Target, suffix)
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <module.ir>",
		Short: "Compile a tensor module to a loadable artifact",
		Long: `Compile a textual tensor module through the lowering pipeline and a
code generation target into a serialized artifact file.

With --cache, artifacts are stored in a SQLite cache keyed by the
module's content hash and the target; a later compile of the same
module is served from the cache.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "code generation target")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE build configuration file")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to SQLite artifact cache")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, inputPath string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadBuildConfig(opts.Config)
	if err != nil {
		return fail(formatter, ErrCodeConfig, err)
	}
	target := opts.Target
	if target == "" {
		target = cfg.Target
	}
	if target == "" {
		target = codegen.DefaultTarget
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
	}

	mod, err := ir.Parse(string(source))
	if err != nil {
		return fail(formatter, ErrCodeParse, err)
	}
	key := store.Key(mod)

	var cache *store.Cache
	if opts.Cache != "" {
		cache, err = store.Open(opts.Cache)
		if err != nil {
			return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
		}
		defer cache.Close()
	}

	ctx := context.Background()
	var artifact []byte
	cached := false
	if cache != nil {
		artifact, cached, err = cache.Get(ctx, key, target)
		if err != nil {
			return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
		}
	}
	if cached {
		formatter.VerboseLog("cache hit for %s (target %s)", key[:12], target)
	} else {
		b := bridge.New(bridge.Options{
			Target:   target,
			Pipeline: cfg.Pipeline,
			DumpIR:   cfg.DumpIR,
		})
		artifact, err = b.Compile(mod)
		if err != nil {
			return fail(formatter, stageCode(err), err)
		}
		if cache != nil {
			if err := cache.Put(ctx, key, target, artifact); err != nil {
				return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
			}
		}
	}

	output := opts.Output
	if output == "" {
		output = defaultOutputPath(inputPath)
	}
	if err := os.WriteFile(output, artifact, 0o644); err != nil {
		return failWithCode(formatter, ErrCodeIO, err, ExitCommandError)
	}

	return formatter.Success(CompileResult{
		Output: output,
		Target: target,
		Bytes:  len(artifact),
		Cached: cached,
	})
}

// defaultOutputPath swaps the input extension for the artifact
// extension.
func defaultOutputPath(inputPath string) string {
	if i := strings.LastIndex(inputPath, "."); i > strings.LastIndex(inputPath, "/") {
		return inputPath[:i] + ".tcaf"
	}
	return inputPath + ".tcaf"
}

// stageCode maps a pipeline error to the code of the stage that
// produced it.
func stageCode(err error) string {
	switch {
	case lower.IsLoweringError(err):
		return ErrCodeLower
	case codegen.IsCompileError(err):
		return ErrCodeCodegen
	}
	var pe *ir.ParseError
	if errors.As(err, &pe) {
		return ErrCodeParse
	}
	return ErrCodeInvoke
}

func fail(f *OutputFormatter, code string, err error) error {
	return failWithCode(f, code, err, ExitFailure)
}

func failWithCode(f *OutputFormatter, code string, err error, exit int) error {
	_ = f.Error(code, err.Error())
	return &ExitError{Code: exit, Message: err.Error(), Err: err}
}
