// pkg/entity/id.go
package entity

import "sync/atomic"

// ID is a unique identifier for an entity
type ID uint64

var nextID atomic.Uint64

// GenerateID returns a process-unique, never-zero ID
func GenerateID() ID {
	return ID(nextID.Add(1))
}

// ReserveID makes sure GenerateID never hands out id or anything below it.
// Restored vehicles keep their persisted IDs this way.
func ReserveID(id ID) {
	for {
		cur := nextID.Load()
		if cur >= uint64(id) || nextID.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}
