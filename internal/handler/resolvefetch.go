package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"studio/internal/bus"
	"studio/internal/logging"
)

// Data sources a resolvefetch result can come from, reported in the
// envelope's source field.
const (
	sourceFormState = "formState"
	sourceScript    = "script"
	sourceLocal     = "local"
	sourceRemote    = "remote"
)

// handleResolveFetch resolves data for a form or list component by trying,
// in order: live form state handed in directly, an inline script, the
// local page snapshot, and finally the remote resolve endpoint. Whatever
// happens, exactly one form-data-resolved or form-data-error event goes
// out carrying the caller's correlation id, so overlapping calls can each
// pick their own result off the bus.
func (d *Dispatcher) handleResolveFetch(ctx context.Context, p Params) (any, error) {
	id := p.String("id")
	code := p.String("code")
	kind := p.String("type")

	// 1. Live form state passed straight through. The boolean form asks
	// for the whole registry.
	if v, ok := p["formState"]; ok {
		if b, isBool := v.(bool); isBool && b && d.deps.Forms != nil {
			v = d.deps.Forms.GetAllFormValues()
		}
		return d.resolveOK(id, code, kind, v, sourceFormState), nil
	}

	// 2. Inline script.
	if script := p.String("script"); script != "" {
		result, err := d.scripts.Run(ctx, script, ScriptEnv{
			Params:  p,
			Payload: p.Map("payload"),
			Event:   p.Map("event"),
		})
		if err != nil {
			logScriptFailure(d.deps.Bus, err)
			d.resolveErr(id, code, kind, err)
			return nil, nil
		}
		return d.resolveOK(id, code, kind, result, sourceScript), nil
	}

	// 3. Local page snapshot by id.
	if id != "" && d.deps.Metadata != nil {
		if pg, err := d.deps.Metadata.GetPage(id); err == nil {
			return d.resolveOK(id, code, kind, pg, sourceLocal), nil
		}
	}

	// 4. Remote fallback.
	if d.deps.ResolveBaseURL == "" {
		err := fmt.Errorf("resolvefetch: no data source for id=%q code=%q", id, code)
		logging.HandlersDebug("%v", err)
		d.resolveErr(id, code, kind, err)
		return nil, nil
	}
	data, err := d.remoteResolve(ctx, id, code, kind, p.Map("formData"))
	if err != nil {
		logging.Handlers("resolvefetch: remote fetch failed: %v", err)
		d.resolveErr(id, code, kind, err)
		return nil, nil
	}
	return d.resolveOK(id, code, kind, data, sourceRemote), nil
}

// remoteResolve hits the resolve endpoint: GET for template reads, POST
// when the caller submits form data.
func (d *Dispatcher) remoteResolve(ctx context.Context, id, code, kind string, formData map[string]any) (any, error) {
	endpoint := d.deps.ResolveBaseURL + "/api/resolve"

	var req *http.Request
	var err error
	if formData != nil {
		body, mErr := json.Marshal(map[string]any{
			"id":       id,
			"code":     code,
			"type":     kind,
			"formData": formData,
		})
		if mErr != nil {
			return nil, mErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		q := url.Values{}
		if id != "" {
			q.Set("id", id)
		}
		if code != "" {
			q.Set("code", code)
		}
		if kind != "" {
			q.Set("type", kind)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	}
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve endpoint returned %s", resp.Status)
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed resolve response: %w", err)
	}
	if data, ok := envelope["data"]; ok {
		return data, nil
	}
	return envelope, nil
}

// resolveOK publishes the success envelope and returns the data.
func (d *Dispatcher) resolveOK(id, code, kind string, data any, source string) any {
	d.deps.Bus.Publish(bus.TopicFormDataResolved, envelope(true, id, code, kind, data, source))
	logging.HandlersDebug("resolvefetch ok: id=%q code=%q source=%s", id, code, source)
	return data
}

// resolveErr publishes the failure envelope.
func (d *Dispatcher) resolveErr(id, code, kind string, err error) {
	env := envelope(false, id, code, kind, nil, "")
	env["error"] = err.Error()
	d.deps.Bus.Publish(bus.TopicFormDataError, env)
}

// envelope builds the resolve event payload shared by the bus contract
// and the HTTP boundary.
func envelope(success bool, id, code, kind string, data any, source string) map[string]any {
	return map[string]any{
		"success":   success,
		"id":        id,
		"code":      code,
		"type":      kind,
		"data":      data,
		"timestamp": time.Now().UnixMilli(),
		"source":    source,
	}
}
