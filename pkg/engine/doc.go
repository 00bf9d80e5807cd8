// Package engine holds the types shared by the cbc document generators:
// the partition and script model, the OS family table, the output Buffer
// every generator writes into, and the classified BuildError.
//
// # Error Classification
//
// Generation errors are classified so callers can decide how far a
// failure reaches:
//
//   - no_records: a required row is missing; the document is abandoned
//   - ambiguous_records: several rows where one was expected; logged only
//   - unresolved_token: a script placeholder failed; only that line is dropped
//   - network_range_exhausted: no free address in a build domain
//   - allocation_failure: a Buffer could not grow; the process panics
//   - invalid: input data breaks an invariant
//
// Use errors.Is with the Err* sentinels, or the Is* helpers:
//
//	if engine.IsNoRecords(err) {
//	    // skip this document, keep the others
//	}
package engine
