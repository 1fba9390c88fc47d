// Package js runs scripted object actions in an embedded v8 instance.
// One machine is shared by the whole process and reached through a
// mutex, so script runs from different sessions serialize against each
// other. That is a capacity constraint, not an accident: the isolate's
// internal state isn't safe for concurrent reentry. Swapping the
// engine for a pool later only touches this package.
package js

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zond/textmud"
	"rogchap.com/v8go"
)

const (
	// DefaultTimeout bounds a single script run. A script that blows
	// the budget is terminated inside v8 and surfaces ErrTimeout.
	DefaultTimeout = 2 * time.Second
)

var (
	ErrTimeout    = fmt.Errorf("script timeout")
	ErrNotAString = fmt.Errorf("script value is not a string")
)

type machine struct {
	iso                    *v8go.Isolate
	unableToGenerateString *v8go.Value
}

func newMachine() (*machine, error) {
	m := &machine{
		iso: v8go.NewIsolate(),
	}
	var err error
	if m.unableToGenerateString, err = v8go.NewValue(m.iso, "unable to generate exception"); err != nil {
		return nil, textmud.WithStack(err)
	}
	return m, nil
}

// Callbacks are host functions installed as globals before a run.
type Callbacks map[string]func(rc *RunContext, info *v8go.FunctionCallbackInfo) *v8go.Value

// Target is one script run: source text, an origin name for error
// reporting, and the host callbacks it may call.
type Target struct {
	Source    string
	Origin    string
	Callbacks Callbacks
}

type RunContext struct {
	m    *machine
	vctx *v8go.Context
	t    *Target
}

func (rc *RunContext) Context() *v8go.Context {
	return rc.vctx
}

func (rc *RunContext) String(s string) *v8go.Value {
	if res, err := v8go.NewValue(rc.m.iso, s); err == nil {
		return res
	}
	return rc.m.unableToGenerateString
}

func (rc *RunContext) Null() *v8go.Value {
	return v8go.Null(rc.m.iso)
}

func (rc *RunContext) Throw(format string, args ...any) *v8go.Value {
	return rc.m.iso.ThrowException(rc.String(fmt.Sprintf(format, args...)))
}

func (rc *RunContext) addCallback(
	name string,
	f func(*RunContext, *v8go.FunctionCallbackInfo) *v8go.Value,
) error {
	return textmud.WithStack(
		rc.vctx.Global().Set(
			name,
			v8go.NewFunctionTemplate(
				rc.m.iso,
				func(info *v8go.FunctionCallbackInfo) *v8go.Value {
					return f(rc, info)
				},
			).GetFunction(rc.vctx),
		),
	)
}

type result struct {
	value *v8go.Value
	err   error
}

func (rc *RunContext) withTimeout(_ context.Context, f func() (*v8go.Value, error), timeout time.Duration) (*v8go.Value, error) {
	results := make(chan result, 1)
	go func() {
		val, err := f()
		results <- result{value: val, err: err}
	}()

	select {
	case res := <-results:
		return res.value, textmud.WithStack(res.err)
	case <-time.After(timeout):
		rc.m.iso.TerminateExecution()
		return nil, textmud.WithStack(ErrTimeout)
	}
}

// Engine is the script engine collaborator. Zero value isn't usable;
// create with New.
type Engine struct {
	mutex   sync.Mutex
	m       *machine
	timeout time.Duration
}

func New() (*Engine, error) {
	m, err := newMachine()
	if err != nil {
		return nil, textmud.WithStack(err)
	}
	return &Engine{
		m:       m,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout replaces the per-run budget. Only meaningful before the
// engine is shared between sessions.
func (e *Engine) SetTimeout(timeout time.Duration) {
	e.timeout = timeout
}

// Run executes the target source and returns its completion value,
// which must be a string. A non-string completion value returns
// ErrNotAString; load or execution failures return the v8 error.
// Each run gets a fresh context, so script globals and callbacks never
// leak between runs.
func (e *Engine) Run(ctx context.Context, t *Target) (string, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	vctx := v8go.NewContext(e.m.iso)
	defer vctx.Close()
	rc := &RunContext{
		m:    e.m,
		vctx: vctx,
		t:    t,
	}
	for name, fun := range t.Callbacks {
		if err := rc.addCallback(name, fun); err != nil {
			return "", textmud.WithStack(err)
		}
	}

	val, err := rc.withTimeout(ctx, func() (*v8go.Value, error) {
		return vctx.RunScript(t.Source, t.Origin)
	}, e.timeout)
	if err != nil {
		return "", textmud.WithStack(err)
	}
	if val == nil || !val.IsString() {
		return "", textmud.WithStack(ErrNotAString)
	}
	return val.String(), nil
}
