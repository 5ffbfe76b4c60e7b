// Package passes implements the transformation pass infrastructure the
// lowering pipeline runs on IR modules.
//
// Passes are registered by name in a process-wide registry (each pass
// file registers itself from init). A Manager is one pass-manager
// session: it is built by parsing a comma-joined pipeline string and
// runs its passes strictly in the declared order. Passes mutate the
// module in place; a pass failure leaves the module in an undefined
// state, which the caller must treat as poisoned.
package passes
