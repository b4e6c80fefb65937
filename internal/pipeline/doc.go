// Package pipeline implements the multi-phase translation run executed
// for each job: blueprint synthesis (keyword extraction, terminology
// grounding, brief assembly), dialogue memory indexing, batched line
// translation with per-line model triage and context retrieval, memory
// cleanup, and final subtitle rendering.
//
// Phases run strictly in order and every stage transition is reported
// through a Reporter, which updates the durable job record and publishes
// a progress event for live subscribers.
package pipeline
