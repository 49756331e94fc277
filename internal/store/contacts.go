package store

import (
	"context"
	"fmt"
)

// ContactsByName finds contacts whose name contains the given fragment,
// case-insensitively.
func (s *Store) ContactsByName(ctx context.Context, name string) ([]Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, created_at
		FROM contacts
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("searching contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// CountContacts returns the total number of contacts.
func (s *Store) CountContacts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting contacts: %w", err)
	}
	return n, nil
}
