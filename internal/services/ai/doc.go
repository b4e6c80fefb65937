// Package ai is the capability gateway for the generative model provider.
//
// It exposes exactly three operations: structured-JSON generation, free-text
// generation, and batch embeddings. Every upstream fault (timeout, quota,
// malformed payload, refusal) surfaces as a services.ErrAI-tagged error so
// callers never depend on provider-specific error shapes. Model selection is
// caller-supplied; the fast/deep tier split lives in the pipeline.
package ai
