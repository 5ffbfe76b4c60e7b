package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/passes"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// ListResult enumerates the registered extension points.
type ListResult struct {
	Targets []string `json:"targets"`
	Drivers []string `json:"drivers"`
	Passes  []string `json:"passes"`
}

func (r ListResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "targets: %s\n", strings.Join(r.Targets, ", "))
	fmt.Fprintf(&b, "drivers: %s\n", strings.Join(r.Drivers, ", "))
	fmt.Fprintf(&b, "passes:  %s", strings.Join(r.Passes, ", "))
	return b.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered targets, drivers, and passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}
			return formatter.Success(ListResult{
				Targets: codegen.TargetNames(),
				Drivers: runtime.DriverNames(),
				Passes:  passes.Names(),
			})
		},
	}
}
