// Package executor runs individual steps: condition check, lifecycle
// hooks, and the retrying action invocation, recording everything into the
// run's execution record.
//
// The Record type is the single writer gate for the shared execution
// state. Step goroutines in a parallel batch never touch the record
// directly; every mutation goes through a Record method holding its lock.
package executor
