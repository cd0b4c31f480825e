package hub

import (
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var ErrAlreadyJoined = errors.New("member already joined a room")

// Member is anything the registry can fan messages out to.
type Member interface {
	ID() string
	Deliver(data []byte) error
	Close(code int, reason string)
}

// Registry maps rooms to their live members. A member belongs to at most
// one room; empty rooms are pruned.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Member // room -> memberID -> member
	members map[string]string            // memberID -> room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]Member),
		members: make(map[string]string),
	}
}

// Join adds m to room. A member can only ever join once.
func (r *Registry) Join(room string, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m.ID()]; ok {
		return ErrAlreadyJoined
	}

	set, ok := r.rooms[room]
	if !ok {
		set = make(map[string]Member)
		r.rooms[room] = set
	}
	set[m.ID()] = m
	r.members[m.ID()] = room

	l := log.L()
	l.Debug().Str(log.FieldClientID, m.ID()).Str(log.FieldRoomID, room).Int(log.FieldMembers, len(set)).Msg("member joined room")
	return nil
}

// Leave removes m from its room and reports the room it left.
// It is a no-op for members that never joined or already left.
func (r *Registry) Leave(m Member) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.members[m.ID()]
	if !ok {
		return "", false
	}
	delete(r.members, m.ID())

	if set, ok := r.rooms[room]; ok {
		delete(set, m.ID())
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}

	l := log.L()
	l.Debug().Str(log.FieldClientID, m.ID()).Str(log.FieldRoomID, room).Msg("member left room")
	return room, true
}

// MembersOf returns a copy of the room's current members. Callers iterate
// the copy without holding the registry lock.
func (r *Registry) MembersOf(room string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[room]
	out := make([]Member, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	return out
}

// RoomOf reports which room the member with id is in.
func (r *Registry) RoomOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.members[id]
	return room, ok
}

func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll asks every member to close. Members leave through their own
// disconnect path, so the registry is not modified here.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.RLock()
	all := make([]Member, 0, len(r.members))
	for _, set := range r.rooms {
		for _, m := range set {
			all = append(all, m)
		}
	}
	r.mu.RUnlock()

	for _, m := range all {
		m.Close(code, reason)
	}
	return len(all)
}
