// Package page defines the persisted studio page model: typed node trees,
// page groups, custom components and the versioned document envelope.
package page

import "time"

// Node is one typed UI node in a page tree.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Children []*Node        `json:"children,omitempty"`
}

// Meta is a complete page record. The canonical copy lives in storage;
// cached copies are read-only views with their own freshness windows.
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Template  string    `json:"template,omitempty"`
	Root      *Node     `json:"root,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Group is a named collection of page ids.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	PageIDs []string `json:"pageIds,omitempty"`
}

// CustomComponent is a reusable node subtree registered by name.
type CustomComponent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Root *Node  `json:"root,omitempty"`
}

// SchemaVersion is the current persisted document version.
const SchemaVersion = 1

// Document is the import/export envelope for the whole store.
type Document struct {
	Version    int                `json:"version"`
	Pages      []*Meta            `json:"pages,omitempty"`
	Groups     []*Group           `json:"groups,omitempty"`
	Components []*CustomComponent `json:"components,omitempty"`
}

// Walk visits root and all descendants depth-first. Returning false from
// visit stops descent into that node's children.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}
