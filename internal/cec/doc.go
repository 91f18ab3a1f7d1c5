// Package cec implements the HDMI-CEC command-queue engine at the heart
// of cecbridge.
//
// A single worker goroutine owns the bus adapter and drains two FIFO
// queues: the normal queue carries all regular work, while a second
// reentrant queue is serviced only while a worker-spawned shell command
// is running, so scripts can drive limited bus control (connect,
// disconnect, reconnect) without deadlocking against the busy worker.
//
// Producers never touch the adapter. They append commands to a queue and
// optionally block until their command's correlation serial is published
// as completed. Adapter callbacks likewise only construct commands and
// enqueue them.
package cec
