package passes

import (
	"fmt"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func init() {
	Register(Pass{Name: "lower-linkage", Run: lowerLinkage})
}

// lowerLinkage assigns each function the normalized symbol a backend
// exports it under. Backends refuse functions without a link name, so
// skipping this pass makes the module uncompilable. Two source names
// that normalize to the same symbol are a linkage conflict.
func lowerLinkage(m *ir.Module) error {
	seen := map[string]string{}
	for _, f := range m.Funcs {
		link := ir.LinkNameFor(f.Name)
		if prev, dup := seen[link]; dup {
			return fmt.Errorf("functions %q and %q link to the same symbol %q", prev, f.Name, link)
		}
		seen[link] = f.Name
		f.LinkName = link
	}
	return nil
}
