// Package model defines the format-agnostic data structures the engine
// operates on: pipeline and step definitions as registered by the caller,
// and the mutable execution records produced by a run.
//
// Definitions are treated as immutable once registered; all run-time state
// lives in PipelineExecution and StepExecution so that a single definition
// can drive any number of concurrent runs.
package model
