// Package game ties the world store, the session registry, the action
// resolver, and the command dispatcher together, and runs the
// per-connection read-dispatch-write loop.
package game

import (
	"context"
	"errors"
	"os"

	"github.com/zond/textmud"
	"github.com/zond/textmud/js"
	"github.com/zond/textmud/storage"
	"github.com/zond/textmud/structs"
	"github.com/zond/textmud/world"
)

const (
	// DefaultRoomID is where fresh sessions start.
	DefaultRoomID = "nexus"

	// welcomeLine greets every new connection. The @D...@ markup is a
	// display hint for the client; the server passes it through
	// untouched.
	welcomeLine = "@DWelcome to the server.@"
)

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// seedRooms is the only hard-coded world content, used when the
// durable store has nothing to load.
func seedRooms() map[string]structs.Room {
	sign := structs.MakeObject("sign")
	sign.Display = "Just a sign, I wonder what it says{@Cread}."
	sign.Actions["read"] = structs.Action{
		Kind:  structs.ActionPrintText,
		Value: "Good job, you learned how to interact with objects!",
	}
	nexus := structs.MakeRoom(DefaultRoomID)
	nexus.Display = "The room is quiet... Except for a [@Csign]."
	nexus.Objects[sign.Name] = sign
	return map[string]structs.Room{DefaultRoomID: nexus}
}

type Game struct {
	world    *world.Store
	sessions *Registry
	storage  *storage.Storage
	resolver *Resolver
}

func New(ctx context.Context, s *storage.Storage) (*Game, error) {
	engine, err := js.New()
	if err != nil {
		return nil, textmud.WithStack(err)
	}
	rooms, err := s.LoadWorld(ctx)
	if err != nil {
		return nil, textmud.WithStack(err)
	}
	if len(rooms) == 0 {
		rooms = seedRooms()
	}
	w := world.New()
	w.Replace(rooms)
	return &Game{
		world:    w,
		sessions: NewRegistry(),
		storage:  s,
		resolver: &Resolver{
			Engine:  engine,
			Storage: s,
		},
	}, nil
}

func (g *Game) World() *world.Store {
	return g.world
}

func (g *Game) Sessions() *Registry {
	return g.sessions
}

func (g *Game) Resolver() *Resolver {
	return g.resolver
}
