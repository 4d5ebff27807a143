package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studio/internal/page"
)

// Page groups and custom components share the pages' storage layout: one
// JSON document column per record.

// ListGroups returns every page group.
func (s *Store) ListGroups() ([]*page.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT document FROM page_groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*page.Group
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var g page.Group
		if err := json.Unmarshal([]byte(doc), &g); err != nil {
			continue
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// SaveGroup upserts a page group.
func (s *Store) SaveGroup(g *page.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal group %q: %w", g.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO page_groups(id, name, document) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, document = excluded.document`,
		g.ID, g.Name, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save group %q: %w", g.ID, err)
	}
	return nil
}

// DeleteGroup removes a page group by id.
func (s *Store) DeleteGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM page_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: group %q", ErrNotFound, id)
	}
	return nil
}

// ListComponents returns every custom component.
func (s *Store) ListComponents() ([]*page.CustomComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT document FROM custom_components ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var comps []*page.CustomComponent
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c page.CustomComponent
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			continue
		}
		comps = append(comps, &c)
	}
	return comps, rows.Err()
}

// GetComponent returns one custom component by id.
func (s *Store) GetComponent(id string) (*page.CustomComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc string
	err := s.db.QueryRow(`SELECT document FROM custom_components WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: component %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var c page.CustomComponent
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("corrupt component document %q: %w", id, err)
	}
	return &c, nil
}

// SaveComponent upserts a custom component.
func (s *Store) SaveComponent(c *page.CustomComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal component %q: %w", c.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO custom_components(id, name, document) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, document = excluded.document`,
		c.ID, c.Name, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save component %q: %w", c.ID, err)
	}
	return nil
}

// DeleteComponent removes a custom component by id.
func (s *Store) DeleteComponent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM custom_components WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete component %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: component %q", ErrNotFound, id)
	}
	return nil
}
