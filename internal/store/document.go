package store

import (
	"encoding/json"
	"fmt"

	"studio/internal/logging"
	"studio/internal/page"
)

// ImportDocument loads a full document envelope into the store. When
// validate is true the raw JSON is schema-checked before any write; a
// rejected document leaves the store untouched.
func (s *Store) ImportDocument(data []byte, validate bool) error {
	if validate {
		if err := page.ValidateDocument(data); err != nil {
			return err
		}
	}

	var doc page.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Version > page.SchemaVersion {
		return fmt.Errorf("%w: document is v%d, binary supports v%d", ErrSchemaVersion, doc.Version, page.SchemaVersion)
	}

	for _, m := range doc.Pages {
		if err := s.SavePage(m); err != nil {
			return err
		}
	}
	for _, g := range doc.Groups {
		if err := s.SaveGroup(g); err != nil {
			return err
		}
	}
	for _, c := range doc.Components {
		if err := s.SaveComponent(c); err != nil {
			return err
		}
	}

	logging.Store("imported document: %d pages, %d groups, %d components",
		len(doc.Pages), len(doc.Groups), len(doc.Components))
	return nil
}

// ExportDocument serializes the whole store into a document envelope.
func (s *Store) ExportDocument() ([]byte, error) {
	pages, err := s.ListPages()
	if err != nil {
		return nil, err
	}
	groups, err := s.ListGroups()
	if err != nil {
		return nil, err
	}
	comps, err := s.ListComponents()
	if err != nil {
		return nil, err
	}

	doc := page.Document{
		Version:    page.SchemaVersion,
		Pages:      pages,
		Groups:     groups,
		Components: comps,
	}
	return json.MarshalIndent(doc, "", "  ")
}
