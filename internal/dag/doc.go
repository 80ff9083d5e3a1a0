// Package dag holds the pure graph logic of the engine: structural
// validation of a pipeline's step list at registration time, and the
// ready-set computation the run loop schedules from.
//
// Both halves are plain functions over the model with no state of their
// own, which keeps them trivially testable and keeps scheduling policy in
// one place.
package dag
