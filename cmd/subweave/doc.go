// Command subweave is the CLI and daemon entry point for the subtitle
// translation service. `subweave daemon` runs the worker pool and HTTP
// API; the remaining subcommands submit jobs, follow their progress, and
// maintain the queue.
package main
