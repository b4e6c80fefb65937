// Package queue provides durable job persistence backed by SQLite.
//
// Jobs move through queued -> active -> completed/failed. Claiming runs
// inside a transaction so each job is processed by at most one worker, and
// failed attempts are requeued with a delay recorded in next_attempt_at.
// The store survives daemon restarts; in-flight jobs are recovered with
// ResetActive on startup.
package queue
