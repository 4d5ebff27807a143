// Package handler is the dispatch boundary interactive components call
// through: Exec(name, params) runs either a registered named handler or a
// user-authored script. Failures never propagate to the call site; they
// degrade to a nil result plus a log and bus trail.
package handler

import (
	"context"
	"net/http"
	"time"

	"studio/internal/bus"
	"studio/internal/cache"
	"studio/internal/form"
	"studio/internal/logging"
	"studio/internal/navigation"
)

// Deps are the collaborators a Dispatcher drives. All are injected; the
// dispatcher owns none of their lifecycles.
type Deps struct {
	Bus       *bus.Bus
	History   *navigation.HistoryManager
	Metadata  *cache.MetadataManager
	Preloader *cache.Preloader
	Forms     *form.Manager
	Elements  *ElementRegistry

	// ResolveBaseURL is the remote fallback for resolvefetch. Empty
	// disables the remote step.
	ResolveBaseURL string
	HTTPClient     *http.Client

	ScriptTimeout time.Duration
}

// Dispatcher routes Exec calls to the built-in table or the script runner.
type Dispatcher struct {
	deps     Deps
	registry *Registry
	scripts  *ScriptRunner
	client   *http.Client
}

// NewDispatcher builds a dispatcher with the full built-in table
// registered.
func NewDispatcher(deps Deps) *Dispatcher {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	d := &Dispatcher{
		deps:     deps,
		registry: NewRegistry(),
		scripts:  NewScriptRunner(deps.Bus, deps.Forms, deps.Elements, deps.ScriptTimeout),
		client:   client,
	}
	d.registerBuiltins()
	return d
}

// Registry exposes the handler table so embedders can add their own
// handlers next to the built-ins.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Exec is the single entry point for side effects. A script parameter
// routes to the interpreter (resolvefetch keeps its own script step so it
// can publish the resolved data). Unknown names and handler failures both
// resolve to (nil, nil).
func (d *Dispatcher) Exec(ctx context.Context, name string, params Params) (any, error) {
	if params == nil {
		params = Params{}
	}

	if script := params.String("script"); script != "" && name != "resolvefetch" {
		return d.execScript(ctx, script, params), nil
	}

	fn, ok := d.registry.Lookup(name)
	if !ok {
		logging.HandlersDebug("unknown handler %q ignored", name)
		return nil, nil
	}

	result, err := fn(ctx, params)
	if err != nil {
		logging.Handlers("handler %q failed: %v", name, err)
		return nil, nil
	}
	return result, nil
}

// execScript runs one script with the never-crash-the-host policy.
func (d *Dispatcher) execScript(ctx context.Context, script string, params Params) any {
	env := ScriptEnv{
		Params:  params,
		Payload: params.Map("payload"),
		Event:   params.Map("event"),
	}
	result, err := d.scripts.Run(ctx, script, env)
	if err != nil {
		logScriptFailure(d.deps.Bus, err)
		return nil
	}
	logging.ScriptDebug("script executed")
	d.deps.Bus.Publish(bus.TopicScriptExecuted, map[string]any{
		"result":    result,
		"timestamp": time.Now().UnixMilli(),
	})
	return result
}
