// Package testutils provides deterministic generators and utility functions for
// ChatBank testing. These utilities ensure consistent test output while
// maintaining production format compatibility.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	testMode   bool
	testModeMu sync.RWMutex

	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex

	// Thread-safe counter for deterministic timestamp generation
	timeCounter int64
	timeMutex   sync.Mutex
)

// SetTestMode toggles deterministic mode. Tests enable it so IDs and
// timestamps are reproducible; production leaves it off.
func SetTestMode(enabled bool) {
	testModeMu.Lock()
	defer testModeMu.Unlock()
	testMode = enabled
	if enabled {
		ResetCounters()
	}
}

// IsTestMode reports whether deterministic mode is active.
func IsTestMode() bool {
	testModeMu.RLock()
	defer testModeMu.RUnlock()
	return testMode
}

// ResetCounters resets the deterministic ID and time counters. Call from test
// setup so each test starts from the same sequence.
func ResetCounters() {
	idMutex.Lock()
	idCounter = 0
	idMutex.Unlock()

	timeMutex.Lock()
	timeCounter = 0
	timeMutex.Unlock()
}

// GenerateUUID generates a UUID that is deterministic in test mode but random
// in production. In test mode, returns UUIDs in format:
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, etc.
func GenerateUUID() string {
	if IsTestMode() {
		idMutex.Lock()
		defer idMutex.Unlock()
		idCounter++
		return fmt.Sprintf("%08d-0000-4000-8000-%012d", idCounter, idCounter)
	}
	return uuid.New().String()
}

// GetCurrentTime returns the current time, deterministic in test mode but real
// in production. In test mode, returns incrementing time starting from
// 2025-01-01T00:00:00Z so ordering comparisons stay meaningful.
func GetCurrentTime() time.Time {
	if IsTestMode() {
		timeMutex.Lock()
		defer timeMutex.Unlock()
		timeCounter++
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		return base.Add(time.Duration(timeCounter) * time.Second)
	}
	return time.Now()
}
