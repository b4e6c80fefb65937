// Package worker runs the job queue's execution side: a fixed pool of
// workers claiming queued jobs and driving each through the translation
// pipeline, with retry and backoff owned by an explicit policy. Every job
// ends in exactly one terminal state and exactly one terminal event.
package worker
