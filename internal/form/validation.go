// Package form tracks live form field state for rendered pages and applies
// blur-gated required-field validation: a required field shows no error
// until the user has left it once, except on submit, which surfaces every
// error at once.
package form

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"studio/internal/logging"
)

// Field is the validation state for one (node, field) pair.
type Field struct {
	NodeID       string `json:"nodeId"`
	Name         string `json:"fieldName"`
	Required     bool   `json:"required"`
	Value        any    `json:"value"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	HasBlurred   bool   `json:"hasBlurred"`
	IsValid      bool   `json:"isValid"`
}

// Listener receives a snapshot of a field after validation runs.
type Listener func(Field)

// Manager is the form field registry. All methods are safe for concurrent
// use; listeners are invoked outside the registry lock.
type Manager struct {
	mu        sync.Mutex
	fields    map[string]*Field
	listeners map[string][]*listenerEntry
	global    []*listenerEntry
}

type listenerEntry struct {
	fn Listener
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		fields:    make(map[string]*Field),
		listeners: make(map[string][]*listenerEntry),
	}
}

// Key returns the registry key for a (node, field) pair.
func Key(nodeID, fieldName string) string {
	return nodeID + "-" + fieldName
}

// RegisterField adds a field on mount. Re-registering an existing field
// updates only the required flag; value and blur state survive re-renders.
func (m *Manager) RegisterField(nodeID, fieldName string, required bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := Key(nodeID, fieldName)
	if f, ok := m.fields[k]; ok {
		f.Required = required
		return
	}
	m.fields[k] = &Field{
		NodeID:   nodeID,
		Name:     fieldName,
		Required: required,
		IsValid:  true,
	}
	logging.FormsDebug("registered field %s", k)
}

// UnregisterField removes a field on unmount.
func (m *Manager) UnregisterField(nodeID, fieldName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fields, Key(nodeID, fieldName))
}

// UpdateFieldValue stores the current value on every keystroke. Validation
// runs only when the field is required and has already been blurred; fresh
// empty fields stay visually clean.
func (m *Manager) UpdateFieldValue(nodeID, fieldName string, value any) {
	m.mu.Lock()
	k := Key(nodeID, fieldName)
	f, ok := m.fields[k]
	if !ok {
		m.mu.Unlock()
		return
	}
	f.Value = value
	var notify []func()
	if f.Required && f.HasBlurred {
		validate(f)
		notify = m.collectLocked(k, *f)
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// MarkFieldBlurred records the first blur and validates required fields.
func (m *Manager) MarkFieldBlurred(nodeID, fieldName string) {
	m.mu.Lock()
	k := Key(nodeID, fieldName)
	f, ok := m.fields[k]
	if !ok {
		m.mu.Unlock()
		return
	}
	f.HasBlurred = true
	var notify []func()
	if f.Required {
		validate(f)
		notify = m.collectLocked(k, *f)
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// ValidateField recomputes one field's validity and notifies listeners.
func (m *Manager) ValidateField(nodeID, fieldName string) bool {
	m.mu.Lock()
	k := Key(nodeID, fieldName)
	f, ok := m.fields[k]
	if !ok {
		m.mu.Unlock()
		return true
	}
	validate(f)
	valid := f.IsValid
	notify := m.collectLocked(k, *f)
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
	return valid
}

// TriggerValidation force-validates every required field regardless of
// blur state. Submit handlers use this to surface all errors at once.
// Returns true when every field is valid.
func (m *Manager) TriggerValidation() bool {
	m.mu.Lock()
	all := true
	var notify []func()
	for k, f := range m.fields {
		if !f.Required {
			continue
		}
		f.HasBlurred = true
		validate(f)
		if !f.IsValid {
			all = false
		}
		notify = append(notify, m.collectLocked(k, *f)...)
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
	logging.FormsDebug("triggered validation, all valid: %v", all)
	return all
}

// GetField returns a snapshot of one field.
func (m *Manager) GetField(nodeID, fieldName string) (Field, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fields[Key(nodeID, fieldName)]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// GetFormValue returns the current value of one field.
func (m *Manager) GetFormValue(nodeID, fieldName string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fields[Key(nodeID, fieldName)]
	if !ok {
		return nil, false
	}
	return f.Value, true
}

// GetAllFormValues returns every field value keyed by registry key.
func (m *Manager) GetAllFormValues() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.fields))
	for k, f := range m.fields {
		out[k] = f.Value
	}
	return out
}

// AddListener subscribes to one field's validation results. Returns an
// idempotent remove function.
func (m *Manager) AddListener(nodeID, fieldName string, l Listener) func() {
	entry := &listenerEntry{fn: l}
	k := Key(nodeID, fieldName)

	m.mu.Lock()
	m.listeners[k] = append(m.listeners[k], entry)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			subs := m.listeners[k]
			for i, e := range subs {
				if e == entry {
					m.listeners[k] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// AddGlobalListener subscribes to every field's validation results.
func (m *Manager) AddGlobalListener(l Listener) func() {
	entry := &listenerEntry{fn: l}

	m.mu.Lock()
	m.global = append(m.global, entry)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, e := range m.global {
				if e == entry {
					m.global = append(m.global[:i], m.global[i+1:]...)
					break
				}
			}
		})
	}
}

// collectLocked builds the notification closures for a field snapshot.
// Must hold m.mu; the closures are invoked after unlock.
func (m *Manager) collectLocked(key string, snapshot Field) []func() {
	var out []func()
	for _, e := range m.listeners[key] {
		fn := e.fn
		out = append(out, func() { fn(snapshot) })
	}
	for _, e := range m.global {
		fn := e.fn
		out = append(out, func() { fn(snapshot) })
	}
	return out
}

// validate recomputes IsValid/ErrorMessage in place.
func validate(f *Field) {
	if f.Required && isEmpty(f.Value) {
		f.IsValid = false
		f.ErrorMessage = fmt.Sprintf("%s is required", f.Name)
		return
	}
	f.IsValid = true
	f.ErrorMessage = ""
}

// isEmpty implements the emptiness predicate: nil, whitespace-only strings
// and empty slices/arrays/maps are empty; booleans and numbers never are.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
