package game

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/zond/textmud"
	"github.com/zond/textmud/js"
	"github.com/zond/textmud/storage"
	"github.com/zond/textmud/structs"
	"rogchap.com/v8go"
)

const (
	unhandledResponse = "Unhandled"
	codeErrorResponse = "Code error, the script did not return a string"
	wrongTypeResponse = "The script returned a non-string value"
)

// Resolver turns an Action into a response string. It holds no state
// of its own; script failures come back as fixed strings to the
// requesting session and never touch the process.
type Resolver struct {
	Engine  *js.Engine
	Storage *storage.Storage
}

func (r *Resolver) Resolve(ctx context.Context, sess *Session, action structs.Action) string {
	switch action.Kind {
	case structs.ActionPrintText:
		return action.Value
	case structs.ActionRunScript:
		source, err := r.Storage.GetSource(ctx, action.Value)
		if err != nil {
			log.Printf("loading script %q: %v", action.Value, err)
			return codeErrorResponse
		}
		value, err := r.Engine.Run(ctx, &js.Target{
			Source:    source,
			Origin:    action.Value + ".js",
			Callbacks: stateCallbacks(sess.ScriptState()),
		})
		if errors.Is(err, js.ErrNotAString) {
			return wrongTypeResponse
		} else if err != nil {
			log.Printf("running script %q: %v", action.Value, err)
			return codeErrorResponse
		}
		return value
	default:
		return unhandledResponse
	}
}

// stateCallbacks exposes one session's private key/value state to a
// script run. The map is shared by handle, so writes made by the
// script stick to the session.
func stateCallbacks(state *textmud.SyncMap[string, string]) js.Callbacks {
	return js.Callbacks{
		"getState": func(rc *js.RunContext, info *v8go.FunctionCallbackInfo) *v8go.Value {
			args := info.Args()
			if len(args) != 1 {
				return rc.Throw("getState takes [string] arguments")
			}
			if value, found := state.GetHas(args[0].String()); found {
				return rc.String(value)
			}
			return rc.Null()
		},
		"setState": func(rc *js.RunContext, info *v8go.FunctionCallbackInfo) *v8go.Value {
			args := info.Args()
			if len(args) != 2 {
				return rc.Throw("setState takes [string, string] arguments")
			}
			state.Set(args[0].String(), args[1].String())
			return nil
		},
	}
}
