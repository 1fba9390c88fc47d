// Package world owns the room registry and the room locking
// discipline. The registry mutex guards only lookup, insert, and
// snapshot iteration; each room carries its own mutex and at most one
// room lock is held by any given command execution.
package world

import (
	"sort"
	"sync"

	"github.com/zond/textmud/structs"
)

// Room is a handle to one lockable room. All reads and mutations of
// the room contents go through With.
type Room struct {
	id    string
	mutex sync.Mutex
	data  structs.Room
}

func (r *Room) Id() string {
	return r.id
}

// With runs f while holding the room lock. f must not call back into
// the store or block on the script engine while it runs.
func (r *Room) With(f func(*structs.Room)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	f(&r.data)
}

func (r *Room) copyData() structs.Room {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.data.Copy()
}

type Store struct {
	mutex sync.Mutex
	rooms map[string]*Room
}

func New() *Store {
	return &Store{
		rooms: map[string]*Room{},
	}
}

// Get returns the room with the given ID, or nil if the ID is unknown
// or the registry lock can't be acquired promptly. Callers treat nil
// as "in an invalid room"; it is a normal outcome, not an error.
func (s *Store) Get(id string) *Room {
	if !s.mutex.TryLock() {
		return nil
	}
	defer s.mutex.Unlock()
	return s.rooms[id]
}

// Ensure returns the room with the given ID, creating an empty one if
// it doesn't exist yet. Creating a room that already exists returns
// the existing room untouched.
func (s *Store) Ensure(id string) *Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if room, found := s.rooms[id]; found {
		return room
	}
	room := &Room{
		id:   id,
		data: structs.MakeRoom(id),
	}
	s.rooms[id] = room
	return room
}

// Snapshot returns a deep copy of all room contents, taking one room
// lock at a time. Rooms mutated concurrently may appear in either
// their pre- or post-mutation state; there is no cross-room
// consistency guarantee.
func (s *Store) Snapshot() map[string]structs.Room {
	s.mutex.Lock()
	handles := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		handles = append(handles, room)
	}
	s.mutex.Unlock()
	result := make(map[string]structs.Room, len(handles))
	for _, room := range handles {
		result[room.id] = room.copyData()
	}
	return result
}

// Replace swaps in a whole new room mapping, normalizing each room.
// Used when loading a persisted world at startup.
func (s *Store) Replace(rooms map[string]structs.Room) {
	next := make(map[string]*Room, len(rooms))
	for id, data := range rooms {
		data := data.Copy()
		data.Id = id
		data.Normalize()
		next[id] = &Room{
			id:   id,
			data: data,
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rooms = next
}

func (s *Store) Ids() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.rooms)
}
