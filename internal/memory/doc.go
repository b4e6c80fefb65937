// Package memory is the long-term context store for translation jobs.
//
// It embeds subtitle lines through the AI gateway and keeps them in an
// external vector index, one namespace per job. The pipeline indexes every
// line up front, queries for semantically relevant prior dialogue per line,
// and purges the namespace once translation finishes.
package memory
