package service

import (
	"hash/fnv"
	"sync"
)

const roomLockStripes = 256

// roomLocks serializes append+publish per room. Rooms hashing to the same
// stripe share a lock.
type roomLocks struct {
	stripes [roomLockStripes]sync.Mutex
}

func (l *roomLocks) forRoom(room string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(room))
	return &l.stripes[h.Sum32()%roomLockStripes]
}
