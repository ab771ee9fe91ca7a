package memorytest

import (
	"testing"
	"time"

	"github.com/becomeliminal/nim-memory/memory"
)

func TestInMemoryStore_Suite(t *testing.T) {
	Suite{
		New: func(t *testing.T) memory.Store {
			return NewInMemoryStore()
		},
		UnknownID:          "6f1c1b1e-9a51-4c1f-8d33-2f0a9a4ad001",
		MalformedID:        "not-a-uuid",
		IDVariants:         UUIDVariants,
		TimestampPrecision: time.Nanosecond,
	}.Run(t)
}
