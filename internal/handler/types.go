package handler

// Params is the loosely-typed parameter bag every handler receives. Keys
// mirror the JSON objects interactive components send.
type Params map[string]any

// String returns a string parameter, or "" when absent or mistyped.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns a bool parameter, defaulting to false.
func (p Params) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Map returns a nested object parameter, or nil.
func (p Params) Map(key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

// Has reports whether the key is present at all, regardless of type.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}
