// Package model defines the core data structures shared by the report pipeline.
//
// This package contains the following main types:
//   - StageConfig: Declarative description of one pipeline position
//   - Status and Kind: The stage lifecycle result and the stage role
//   - ResultBuffer: The row/cell accumulator shared by all stages of a run
//   - RunContext: Run-scoped parameters and the usage record of one run
//
// Models live in their own package because the pipeline, the concrete
// stages, the report writers and the history database all depend on them.
package model
