// Package task runs heavy, blocking work on a bounded pool of worker
// goroutines fed by a FIFO queue, keeping it off the goroutines that serve
// API requests.
package task
