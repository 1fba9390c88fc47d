// Package structs contains the plain data model shared by the world
// store, the dispatcher, and the persistence gateway. The JSON shape of
// these types is the contract the gateway round-trips.
package structs

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zond/textmud"
)

var (
	lastSessionCounter uint64 = 0
	encoding                  = base64.StdEncoding.WithPadding(base64.NoPadding)
)

const (
	sessionIDLen = 16
)

// NextSessionID returns a unique, roughly time-ordered session ID.
func NextSessionID() (string, error) {
	counter := increment(&lastSessionCounter)
	counterSize := binary.Size(counter)
	result := make([]byte, sessionIDLen)
	binary.BigEndian.PutUint64(result, counter)
	if _, err := rand.Read(result[counterSize:]); err != nil {
		return "", textmud.WithStack(err)
	}
	return encoding.EncodeToString(result), nil
}

func increment(prevPointer *uint64) uint64 {
	next := uint64(0)
	for {
		next = uint64(time.Now().UnixNano())
		previous := atomic.LoadUint64(prevPointer)
		if next > previous && atomic.CompareAndSwapUint64(prevPointer, previous, next) {
			break
		}
	}
	return next
}

type ActionKind string

const (
	ActionNone      ActionKind = "None"
	ActionPrintText ActionKind = "PrintText"
	ActionRunScript ActionKind = "RunScript"
)

// Action is the behavior bound to one (object, action name) pair.
// Immutable once constructed and stored by value in an Object.
// Value holds the text for PrintText and the script name for RunScript.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

// ParseAction parses a builder-supplied action body.
// The grammar has two branches, "PrintText <text>" and
// "RunScript <name>"; anything else becomes ActionNone.
func ParseAction(body string) Action {
	verb, rest, _ := strings.Cut(body, " ")
	switch verb {
	case string(ActionPrintText):
		if rest != "" {
			return Action{Kind: ActionPrintText, Value: rest}
		}
	case string(ActionRunScript):
		if name := strings.TrimSpace(rest); name != "" {
			return Action{Kind: ActionRunScript, Value: name}
		}
	}
	return Action{Kind: ActionNone}
}

// Object is a named, interactable entity owned by a room. It has no
// identity outside the room's object mapping.
type Object struct {
	Name    string            `json:"name"`
	Display string            `json:"display"`
	Actions map[string]Action `json:"actions"`
}

func MakeObject(name string) Object {
	return Object{
		Name:    name,
		Display: name,
		Actions: map[string]Action{},
	}
}

// Copy returns a deep copy of the object.
func (o Object) Copy() Object {
	result := o
	result.Actions = make(map[string]Action, len(o.Actions))
	for name, action := range o.Actions {
		result.Actions[name] = action
	}
	return result
}

// Room is a node in the world graph. Sessions holds the IDs of
// connected sessions and is never persisted; links are directed and
// not required to be symmetric.
type Room struct {
	Id       string            `json:"id"`
	Display  string            `json:"display"`
	Sessions map[string]bool   `json:"-"`
	Links    []string          `json:"links,omitempty"`
	Objects  map[string]Object `json:"objects"`
}

func MakeRoom(id string) Room {
	return Room{
		Id:       id,
		Sessions: map[string]bool{},
		Objects:  map[string]Object{},
	}
}

// Normalize ensures the maps a freshly unmarshalled room needs are
// non-nil.
func (r *Room) Normalize() {
	if r.Sessions == nil {
		r.Sessions = map[string]bool{}
	}
	if r.Objects == nil {
		r.Objects = map[string]Object{}
	}
	for name, obj := range r.Objects {
		if obj.Actions == nil {
			obj.Actions = map[string]Action{}
			r.Objects[name] = obj
		}
	}
}

func (r *Room) HasLink(id string) bool {
	for _, link := range r.Links {
		if link == id {
			return true
		}
	}
	return false
}

// Copy returns a deep copy of the room.
func (r *Room) Copy() Room {
	result := *r
	result.Sessions = make(map[string]bool, len(r.Sessions))
	for id := range r.Sessions {
		result.Sessions[id] = true
	}
	result.Links = append([]string(nil), r.Links...)
	result.Objects = make(map[string]Object, len(r.Objects))
	for name, obj := range r.Objects {
		result.Objects[name] = obj.Copy()
	}
	return result
}

// SessionRecord is the persistable part of a session, keyed by name in
// the gateway. Connection addresses are never persisted.
type SessionRecord struct {
	Name        string            `json:"name"`
	Room        string            `json:"room"`
	EditMode    bool              `json:"edit_mode"`
	ScriptState map[string]string `json:"script_state"`
}
