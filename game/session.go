package game

import (
	"net"
	"sync"

	"github.com/zond/textmud"
	"github.com/zond/textmud/structs"
	"github.com/zond/textmud/world"
)

// Session is the server-side state for one connected player. Fields
// are guarded by the session's own mutex, so commands against
// different sessions never contend. The script state map is shared by
// handle with the script engine and locks itself.
type Session struct {
	id     string
	remote net.Addr

	mutex       sync.Mutex
	name        string
	room        string
	editMode    bool
	scriptState *textmud.SyncMap[string, string]
}

func NewSession(remote net.Addr) (*Session, error) {
	id, err := structs.NextSessionID()
	if err != nil {
		return nil, textmud.WithStack(err)
	}
	return &Session{
		id:          id,
		remote:      remote,
		room:        DefaultRoomID,
		scriptState: textmud.NewSyncMap[string, string](),
	}, nil
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) Remote() net.Addr {
	return s.remote
}

func (s *Session) Name() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.name = name
}

func (s *Session) Room() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.room
}

func (s *Session) SetRoom(room string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.room = room
}

func (s *Session) EditMode() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editMode
}

// ToggleEditMode flips the edit flag and returns the new value.
func (s *Session) ToggleEditMode() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.editMode = !s.editMode
	return s.editMode
}

func (s *Session) ScriptState() *textmud.SyncMap[string, string] {
	return s.scriptState
}

// Record returns the persistable fields. The connection address stays
// out on purpose.
func (s *Session) Record() *structs.SessionRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return &structs.SessionRecord{
		Name:        s.name,
		Room:        s.room,
		EditMode:    s.editMode,
		ScriptState: s.scriptState.Clone(),
	}
}

// Apply replaces the in-memory fields with a persisted record. The
// caller is responsible for room membership before and after.
func (s *Session) Apply(rec *structs.SessionRecord) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.name = rec.Name
	s.room = rec.Room
	s.editMode = rec.EditMode
	s.scriptState.Replace(rec.ScriptState)
}

// Registry tracks the live sessions. The list is guarded by one lock
// held briefly for membership changes and iteration; removal is a
// linear scan, which is fine at tens to low hundreds of sessions.
type Registry struct {
	mutex    sync.Mutex
	sessions []*Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(sess *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions = append(r.sessions, sess)
}

// Unregister removes the session with the given ID. Calling it twice
// is safe.
func (r *Registry) Unregister(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, sess := range r.sessions {
		if sess.id == id {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sessions)
}

func (r *Registry) Each(f func(*Session) bool) {
	r.mutex.Lock()
	sessions := append([]*Session(nil), r.sessions...)
	r.mutex.Unlock()
	for _, sess := range sessions {
		if !f(sess) {
			return
		}
	}
}

// Enter adds the session to its current room's connected set. Room
// membership is mutated only by the registry, and only under that
// room's lock.
func (r *Registry) Enter(store *world.Store, sess *Session) {
	if room := store.Get(sess.Room()); room != nil {
		room.With(func(data *structs.Room) {
			data.Sessions[sess.Id()] = true
		})
	}
}

// Leave removes the session from its current room's connected set.
func (r *Registry) Leave(store *world.Store, sess *Session) {
	if room := store.Get(sess.Room()); room != nil {
		room.With(func(data *structs.Room) {
			delete(data.Sessions, sess.Id())
		})
	}
}

// MoveTo reassigns the session to dest, leaving the old room and
// entering the new one with one room lock held at a time.
func (r *Registry) MoveTo(store *world.Store, sess *Session, dest string) {
	r.Leave(store, sess)
	sess.SetRoom(dest)
	r.Enter(store, sess)
}
