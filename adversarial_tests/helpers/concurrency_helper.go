package helpers

import (
	"fmt"
	"runtime"
	"time"
)

// GoroutineSnapshot captures the goroutine count at a point in time
type GoroutineSnapshot struct {
	Count     int
	Timestamp time.Time
}

// TakeGoroutineSnapshot captures current goroutine count
func TakeGoroutineSnapshot() *GoroutineSnapshot {
	return &GoroutineSnapshot{
		Count:     runtime.NumGoroutine(),
		Timestamp: time.Now(),
	}
}

// WaitForGoroutineCleanup waits until at most tolerance goroutines more than
// the snapshot are running.
func WaitForGoroutineCleanup(before *GoroutineSnapshot, maxWait time.Duration, tolerance int) error {
	deadline := time.Now().Add(maxWait)
	for {
		current := runtime.NumGoroutine()
		if current-before.Count <= tolerance {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("goroutine leak detected: started with %d, ended with %d (tolerance %d)",
				before.Count, current, tolerance)
		}
		runtime.GC()
		time.Sleep(50 * time.Millisecond)
	}
}
