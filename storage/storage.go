// Package storage is the persistence gateway: durable snapshots of the
// world, per-name session records, and raw script sources. Values are
// JSON; the durable files are tkrzw hash DBMs. Nothing here is
// coordinated with the live locking model - a world snapshot is
// whatever the caller handed over.
package storage

import (
	"context"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/zond/textmud"
	"github.com/zond/textmud/structs"

	goccy "github.com/goccy/go-json"
)

const (
	// worldKey is the single record the whole room mapping lives
	// under. Each save overwrites the previous one; best effort, no
	// versioning.
	worldKey = "world"

	sourceCacheTTL = time.Minute
)

type Storage struct {
	world    *hash
	sessions *hash
	sources  *hash

	sourceCache cache.Cache[string, string]
}

func New(ctx context.Context, dir string) (*Storage, error) {
	o := &opener{dir: dir}
	s := &Storage{
		world:       o.openHash("world"),
		sessions:    o.openHash("sessions"),
		sources:     o.openHash("sources"),
		sourceCache: cache.NewCache[string, string]().WithTTL(sourceCacheTTL),
	}
	if o.err != nil {
		return nil, textmud.WithStack(o.err)
	}
	return s, nil
}

func (s *Storage) Close() {
	s.world.close()
	s.sessions.close()
	s.sources.close()
}

// SaveWorld overwrites the durable world record with the given
// snapshot.
func (s *Storage) SaveWorld(ctx context.Context, rooms map[string]structs.Room) error {
	b, err := goccy.Marshal(rooms)
	if err != nil {
		return textmud.WithStack(err)
	}
	return textmud.WithStack(s.world.set(worldKey, b))
}

// LoadWorld returns the persisted room mapping, or an empty mapping if
// nothing has been saved yet.
func (s *Storage) LoadWorld(ctx context.Context) (map[string]structs.Room, error) {
	b, err := s.world.get(worldKey)
	if isNotExist(err) {
		return map[string]structs.Room{}, nil
	} else if err != nil {
		return nil, textmud.WithStack(err)
	}
	result := map[string]structs.Room{}
	if err := goccy.Unmarshal(b, &result); err != nil {
		return nil, textmud.WithStack(err)
	}
	for id, room := range result {
		room.Id = id
		room.Normalize()
		result[id] = room
	}
	return result, nil
}

// SaveSession overwrites the record stored under the session name.
func (s *Storage) SaveSession(ctx context.Context, rec *structs.SessionRecord) error {
	b, err := goccy.Marshal(rec)
	if err != nil {
		return textmud.WithStack(err)
	}
	return textmud.WithStack(s.sessions.set(rec.Name, b))
}

// LoadSession returns the record stored under name, or os.ErrNotExist.
func (s *Storage) LoadSession(ctx context.Context, name string) (*structs.SessionRecord, error) {
	b, err := s.sessions.get(name)
	if err != nil {
		return nil, textmud.WithStack(err)
	}
	result := &structs.SessionRecord{}
	if err := goccy.Unmarshal(b, result); err != nil {
		return nil, textmud.WithStack(err)
	}
	if result.ScriptState == nil {
		result.ScriptState = map[string]string{}
	}
	return result, nil
}

// SetSource stores raw script text under a name and drops any cached
// copy so the next run sees the new text.
func (s *Storage) SetSource(ctx context.Context, name string, source string) error {
	if err := s.sources.set(name, []byte(source)); err != nil {
		return textmud.WithStack(err)
	}
	s.sourceCache.Invalidate(name)
	return nil
}

// GetSource returns the script text stored under name, or
// os.ErrNotExist. Reads are cached briefly; SetSource invalidates.
func (s *Storage) GetSource(ctx context.Context, name string) (string, error) {
	if source, found := s.sourceCache.Get(name); found {
		return source, nil
	}
	b, err := s.sources.get(name)
	if err != nil {
		return "", textmud.WithStack(err)
	}
	source := string(b)
	s.sourceCache.Set(name, source, 0)
	return source, nil
}

// EachSourceName calls f with every stored script name.
func (s *Storage) EachSourceName(ctx context.Context, f func(name string) (bool, error)) error {
	return textmud.WithStack(s.sources.each(func(key string, _ []byte) (bool, error) {
		return f(key)
	}))
}
