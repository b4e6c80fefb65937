// Package services holds the error taxonomy shared by pipeline components.
//
// Sentinel errors classify failures for the worker pool: ErrAI,
// ErrInvalidBlueprint, and ErrIndexing are fatal to a job attempt, while
// ErrValidation and ErrConfiguration indicate the job can never succeed as
// submitted. Wrap tags errors with component context so log output and the
// failed-event message stay consistent.
package services
