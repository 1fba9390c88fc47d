package game

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/rodaine/table"
	"github.com/zond/textmud"
	"github.com/zond/textmud/structs"
	"github.com/zond/textmud/world"
)

const (
	quietResponse       = "The room is quiet."
	builderResponse     = "Nice builder command."
	invalidRoomResponse = "You belong to an invalid room."
	noRoomResponse      = "Not in a room?"
	notAnObjectResponse = "Not a valid object."
	internalResponse    = "Something went wrong."
)

type command struct {
	names map[string]bool
	f     func(ctx context.Context, sess *Session, line string) (string, error)
}

type commands []command

func (c commands) attempt(ctx context.Context, sess *Session, name string, line string) (string, bool, error) {
	for _, cmd := range c {
		if cmd.names[name] {
			response, err := cmd.f(ctx, sess, line)
			if err != nil {
				return "", true, textmud.WithStack(err)
			}
			return response, true, nil
		}
	}
	return "", false, nil
}

func m(s ...string) map[string]bool {
	res := map[string]bool{}
	for _, p := range s {
		res[p] = true
	}
	return res
}

// parseTokens parses up to n shell-style tokens from s and returns
// them plus the remaining string verbatim. If n <= 0, parses all
// tokens. Handles single quotes, double quotes, and backslash escapes.
func parseTokens(s string, n int) (tokens []string, rest string) {
	i := 0
	for (n <= 0 || len(tokens) < n) && i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		var token strings.Builder
		for i < len(s) && s[i] != ' ' && s[i] != '\t' {
			switch s[i] {
			case '\'':
				i++
				for i < len(s) && s[i] != '\'' {
					token.WriteByte(s[i])
					i++
				}
				if i < len(s) {
					i++
				}
			case '"':
				i++
				for i < len(s) && s[i] != '"' {
					if s[i] == '\\' && i+1 < len(s) {
						i++
					}
					token.WriteByte(s[i])
					i++
				}
				if i < len(s) {
					i++
				}
			default:
				token.WriteByte(s[i])
				i++
			}
		}
		tokens = append(tokens, token.String())
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return tokens, s[i:]
}

func commandName(line string) string {
	if idx := strings.IndexByte(line, ' '); idx != -1 {
		return line[:idx]
	}
	return line
}

// Dispatch maps one decoded input line to a response string. Lines
// prefixed with a backslash route to the builder commands, everything
// else to the play commands. Unrecognized input gets a fixed neutral
// string, never an error.
func (g *Game) Dispatch(ctx context.Context, sess *Session, line string) string {
	if strings.HasPrefix(line, `\`) {
		return g.dispatchBuilder(ctx, sess, line)
	}
	response, found, err := g.playCommands().attempt(ctx, sess, commandName(line), line)
	if err != nil {
		log.Printf("dispatching %q: %v", line, err)
		return internalResponse
	}
	if found {
		return response
	}
	return quietResponse
}

func (g *Game) dispatchBuilder(ctx context.Context, sess *Session, line string) string {
	if !sess.EditMode() {
		return `You are not in edit mode. Type "edit" first.`
	}
	response, found, err := g.builderCommands().attempt(ctx, sess, commandName(line), line)
	if err != nil {
		log.Printf("dispatching %q: %v", line, err)
		return internalResponse
	}
	if found {
		return response
	}
	return builderResponse
}

func describeRoom(room *world.Room) string {
	buf := &strings.Builder{}
	room.With(func(data *structs.Room) {
		fmt.Fprintln(buf, data.Display)
		if len(data.Objects) > 0 {
			names := make([]string, 0, len(data.Objects))
			for name := range data.Objects {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(buf)
			t := table.New("Object", "Description").WithWriter(buf)
			for _, name := range names {
				t.AddRow(name, data.Objects[name].Display)
			}
			t.Print()
		}
		if len(data.Links) > 0 {
			fmt.Fprintln(buf)
			fmt.Fprintf(buf, "Links: %s\n", strings.Join(data.Links, ", "))
		}
	})
	return strings.TrimRight(buf.String(), "\n")
}

func (g *Game) playCommands() commands {
	return []command{
		{
			names: m("i"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, _ := parseTokens(line, 3)
				if len(parts) < 3 {
					return "i <object name> <action>", nil
				}
				room := g.world.Get(sess.Room())
				if room == nil {
					return invalidRoomResponse, nil
				}
				var (
					action             structs.Action
					objFound, actFound bool
				)
				room.With(func(data *structs.Room) {
					obj, found := data.Objects[parts[1]]
					if !found {
						return
					}
					objFound = true
					action, actFound = obj.Actions[parts[2]]
				})
				if !objFound {
					return "The object does not exist", nil
				}
				if !actFound {
					return "The object does not have that action", nil
				}
				// The room lock is released before resolution: a
				// script run can block for the whole engine timeout.
				return g.resolver.Resolve(ctx, sess, action), nil
			},
		},
		{
			names: m("look"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, _ := parseTokens(line, 2)
				room := g.world.Get(sess.Room())
				if room == nil {
					return invalidRoomResponse, nil
				}
				if len(parts) < 2 {
					return describeRoom(room), nil
				}
				display, found := "", false
				room.With(func(data *structs.Room) {
					var obj structs.Object
					if obj, found = data.Objects[parts[1]]; found {
						display = obj.Display
					}
				})
				if !found {
					return "The object does not exist", nil
				}
				return display, nil
			},
		},
		{
			names: m("move"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, _ := parseTokens(line, 2)
				if len(parts) < 2 {
					return "move <room>", nil
				}
				dest := parts[1]
				room := g.world.Get(sess.Room())
				if room == nil {
					return invalidRoomResponse, nil
				}
				linked := false
				room.With(func(data *structs.Room) {
					linked = data.HasLink(dest)
				})
				if !linked {
					return "That area does not exist here.", nil
				}
				// The link check above and the reassignment below hold
				// separate locks. A builder editing links in between
				// can win that race; accepted, rooms are never locked
				// in pairs.
				target := g.world.Get(dest)
				if target == nil {
					return "That area does not exist here.", nil
				}
				g.sessions.MoveTo(g.world, sess, dest)
				return describeRoom(target), nil
			},
		},
		{
			names: m("login"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, _ := parseTokens(line, 2)
				if len(parts) < 2 {
					return "login <name>", nil
				}
				rec, err := g.storage.LoadSession(ctx, parts[1])
				if isNotExist(err) {
					sess.SetName(parts[1])
					return fmt.Sprintf("No saved state for %q, but the name is yours now.", parts[1]), nil
				} else if err != nil {
					return "", textmud.WithStack(err)
				}
				g.sessions.Leave(g.world, sess)
				sess.Apply(rec)
				g.sessions.Enter(g.world, sess)
				return fmt.Sprintf("Welcome back, %s.", rec.Name), nil
			},
		},
		{
			names: m("edit"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				if sess.ToggleEditMode() {
					return "You are now in edit mode.", nil
				}
				return "You are no longer in edit mode.", nil
			},
		},
		{
			names: m("help"),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				return strings.Join([]string{
					"i - interacts with an object: i <object> <action>",
					"look - describes the room or one object: look [object]",
					"move - follows a link to another room: move <room>",
					"login - restores a saved session: login <name>",
					"edit - toggles builder mode",
					"help - you're here",
				}, "\n"), nil
			},
		},
	}
}

func (g *Game) builderCommands() commands {
	return []command{
		{
			names: m(`\add`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, err := shellwords.SplitPosix(line)
				if err != nil || len(parts) != 2 {
					return `\add <object name>`, nil
				}
				room := g.world.Get(sess.Room())
				if room == nil {
					return noRoomResponse, nil
				}
				// Adding an existing name replaces the object,
				// resetting its display text and actions.
				room.With(func(data *structs.Room) {
					data.Objects[parts[1]] = structs.MakeObject(parts[1])
				})
				return "Added", nil
			},
		},
		{
			names: m(`\describe`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, rest := parseTokens(line, 2)
				if len(parts) < 2 || rest == "" {
					return `\describe "<object name>" <description>`, nil
				}
				room := g.world.Get(sess.Room())
				if room == nil {
					return noRoomResponse, nil
				}
				found := false
				room.With(func(data *structs.Room) {
					obj, ok := data.Objects[parts[1]]
					if !ok {
						return
					}
					obj.Display = rest
					data.Objects[parts[1]] = obj
					found = true
				})
				if !found {
					return notAnObjectResponse, nil
				}
				return "Done", nil
			},
		},
		{
			names: m(`\action`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				usage := `\action <object>:<action name>:<action body>`
				_, rest := parseTokens(line, 1)
				segments := strings.SplitN(rest, ":", 3)
				if len(segments) != 3 || segments[0] == "" || segments[1] == "" {
					return usage, nil
				}
				room := g.world.Get(sess.Room())
				if room == nil {
					return noRoomResponse, nil
				}
				found := false
				room.With(func(data *structs.Room) {
					obj, ok := data.Objects[segments[0]]
					if !ok {
						return
					}
					obj.Actions[segments[1]] = structs.ParseAction(segments[2])
					found = true
				})
				if !found {
					return notAnObjectResponse, nil
				}
				return "Done", nil
			},
		},
		{
			names: m(`\link`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				parts, err := shellwords.SplitPosix(line)
				if err != nil || len(parts) != 2 {
					return `\link <room>`, nil
				}
				dest := parts[1]
				room := g.world.Get(sess.Room())
				if room == nil {
					return noRoomResponse, nil
				}
				g.world.Ensure(dest)
				already := false
				room.With(func(data *structs.Room) {
					if data.HasLink(dest) {
						already = true
						return
					}
					data.Links = append(data.Links, dest)
				})
				if already {
					return "Already linked", nil
				}
				return "Linked", nil
			},
		},
		{
			names: m(`\script`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				_, rest := parseTokens(line, 1)
				name, contents, ok := strings.Cut(rest, ":")
				if !ok || name == "" {
					return `\script <name>:<contents>`, nil
				}
				if err := g.storage.SetSource(ctx, name, contents); err != nil {
					log.Printf("storing script %q: %v", name, err)
					return fmt.Sprintf("Failed to store the script: %v", err), nil
				}
				return "Stored", nil
			},
		},
		{
			names: m(`\save`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				// A failed save reports to the builder and leaves the
				// process running.
				if err := g.storage.SaveWorld(ctx, g.world.Snapshot()); err != nil {
					log.Printf("saving world: %v", err)
					return fmt.Sprintf("Failed to save the world: %v", err), nil
				}
				if name := sess.Name(); name != "" {
					if err := g.storage.SaveSession(ctx, sess.Record()); err != nil {
						log.Printf("saving session %q: %v", name, err)
						return fmt.Sprintf("Saved the world, but failed to save you: %v", err), nil
					}
				}
				return "Nice save!", nil
			},
		},
		{
			names: m(`\rooms`),
			f: func(ctx context.Context, sess *Session, line string) (string, error) {
				buf := &strings.Builder{}
				t := table.New("Room", "Objects", "Links", "Sessions").WithWriter(buf)
				for _, id := range g.world.Ids() {
					room := g.world.Get(id)
					if room == nil {
						continue
					}
					room.With(func(data *structs.Room) {
						t.AddRow(id, len(data.Objects), len(data.Links), len(data.Sessions))
					})
				}
				t.Print()
				return strings.TrimRight(buf.String(), "\n"), nil
			},
		},
	}
}
