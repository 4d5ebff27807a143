package handler

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"studio/internal/bus"
	"studio/internal/form"
	"studio/internal/logging"
)

// DefaultScriptTimeout bounds a single script run.
const DefaultScriptTimeout = 5 * time.Second

// ScriptEnv is the ambient data injected into a script run as host.Params,
// host.Payload and host.Event.
type ScriptEnv struct {
	Params  map[string]any
	Payload map[string]any
	Event   map[string]any
}

// ScriptRunner interprets user-authored Go snippets with a whitelisted
// import surface and an injected host package. Scripts never get ambient
// access to the filesystem, network or process.
//
// Two forms are accepted: a bare statement list (wrapped into a Run
// function automatically, with host pre-imported) or a full
// "package main" source that defines func Run() interface{} itself.
type ScriptRunner struct {
	bus      *bus.Bus
	forms    *form.Manager
	elements *ElementRegistry
	timeout  time.Duration
	allowed  map[string]bool
}

// NewScriptRunner creates a runner bound to the given collaborators.
func NewScriptRunner(b *bus.Bus, forms *form.Manager, elements *ElementRegistry, timeout time.Duration) *ScriptRunner {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &ScriptRunner{
		bus:      b,
		forms:    forms,
		elements: elements,
		timeout:  timeout,
		allowed: map[string]bool{
			"host": true,

			"strings":         true,
			"strconv":         true,
			"fmt":             true,
			"math":            true,
			"regexp":          true,
			"encoding/json":   true,
			"encoding/base64": true,
			"time":            true,
			"sort":            true,
			"bytes":           true,

			// os, os/exec, net, net/http, syscall, unsafe stay blocked.
		},
	}
}

// Run interprets script and returns its Run() result. The script sees the
// host package only; stdlib imports outside the whitelist are rejected
// before evaluation.
func (sr *ScriptRunner) Run(ctx context.Context, script string, env ScriptEnv) (any, error) {
	if err := sr.validateImports(script); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib: %w", err)
	}
	if err := i.Use(sr.hostSymbols(env)); err != nil {
		return nil, fmt.Errorf("load host symbols: %w", err)
	}

	if _, err := i.Eval(wrapScript(script)); err != nil {
		return nil, fmt.Errorf("script compile: %w", err)
	}

	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("Run entry point not found: %w", err)
	}
	run, ok := v.Interface().(func() interface{})
	if !ok {
		return nil, fmt.Errorf("Run has wrong signature, want func() interface{}")
	}

	ctx, cancel := context.WithTimeout(ctx, sr.timeout)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("script panic: %v", r)
			}
		}()
		resultCh <- run()
	}()

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("script execution timed out: %w", ctx.Err())
	}
}

// hostSymbols builds the injected host package for one run.
func (sr *ScriptRunner) hostSymbols(env ScriptEnv) interp.Exports {
	if env.Params == nil {
		env.Params = map[string]any{}
	}
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	if env.Event == nil {
		env.Event = map[string]any{}
	}

	publish := func(topic string, payload interface{}) {
		if sr.bus != nil {
			sr.bus.Publish(topic, payload)
		}
	}
	formValue := func(nodeID, fieldName string) interface{} {
		if sr.forms == nil {
			return nil
		}
		v, _ := sr.forms.GetFormValue(nodeID, fieldName)
		return v
	}
	allFormValues := func() map[string]interface{} {
		if sr.forms == nil {
			return map[string]interface{}{}
		}
		return sr.forms.GetAllFormValues()
	}
	setText := func(id, text string) {
		if sr.elements != nil {
			sr.elements.SetText(id, text)
		}
	}
	getText := func(id string) string {
		if sr.elements == nil {
			return ""
		}
		return sr.elements.GetText(id)
	}

	return interp.Exports{
		"host/host": map[string]reflect.Value{
			"Publish":       reflect.ValueOf(publish),
			"FormValue":     reflect.ValueOf(formValue),
			"AllFormValues": reflect.ValueOf(allFormValues),
			"SetText":       reflect.ValueOf(setText),
			"GetText":       reflect.ValueOf(getText),
			"Params":        reflect.ValueOf(env.Params),
			"Payload":       reflect.ValueOf(env.Payload),
			"Event":         reflect.ValueOf(env.Event),
		},
	}
}

// validateImports scans the script text for import statements and rejects
// any package outside the whitelist.
func (sr *ScriptRunner) validateImports(script string) error {
	var imports []string
	inBlock := false
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock && trimmed != "":
			imports = append(imports, importPath(trimmed))
		case strings.HasPrefix(trimmed, "import "):
			imports = append(imports, importPath(strings.TrimPrefix(trimmed, "import ")))
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if pkg != "" && !sr.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

// importPath strips an optional alias and quotes from one import line.
func importPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '"'); i >= 0 {
		s = s[i:]
	}
	return strings.Trim(s, `"`)
}

// wrapScript turns a bare statement list into a complete source file. A
// script that already declares package main is taken verbatim and must
// define Run itself. The trailing naked return keeps scripts without an
// explicit return value compiling.
func wrapScript(script string) string {
	if strings.Contains(script, "package main") {
		return script
	}
	return fmt.Sprintf(`package main

import "host"

var _ = host.Params

func Run() (_ interface{}) {
%s
return
}
`, script)
}

// logScriptFailure records a failed run on both log and bus trails.
func logScriptFailure(b *bus.Bus, err error) {
	logging.ScriptError("script failed: %v", err)
	if b != nil {
		b.Publish(bus.TopicScriptError, map[string]any{
			"error":     err.Error(),
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
