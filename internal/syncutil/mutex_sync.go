//go:build !deadlock

// Package syncutil provides the mutex types used for trace buffers and test
// links. Standard sync types are used by default; build with -tags=deadlock
// to swap in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}
