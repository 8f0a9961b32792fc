// Package utils provides common utility functions for the studygraph
// project: vector math for similarity scoring, bounded concurrent
// execution for retrieval fan-out, and panic recovery for goroutines.
package utils
