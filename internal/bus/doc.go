// Package bus is an in-process publish/subscribe broker for job progress
// events. Each job publishes to its own topic (the job ID); API clients
// subscribe to stream progress out over SSE. Delivery is fire-and-forget
// with no history, so the durable job record remains the source of truth.
package bus
