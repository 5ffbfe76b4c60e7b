// Package ir provides the tensor-function intermediate representation
// that the compilation bridge operates on.
//
// This package contains type definitions plus the canonical textual
// form (Parse/Print). All other internal packages import ir; ir imports
// nothing internal. This ensures IR remains the foundational layer with
// no circular dependencies.
//
// Key design constraints:
//   - Functions are flat SSA op lists; no blocks, no control flow
//   - Value ids are dense: params first, then one id per defining op
//   - Symbol names are NFC normalized when link names are assigned
//   - A module that fails lowering is invalidated and must be discarded;
//     downstream stages refuse invalidated modules
package ir
