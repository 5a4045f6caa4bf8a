// Package worker is the runtime of a process started by the pool. The same
// binary runs as a worker when its command line carries the worker flag.
package worker
