package sqlite

import (
	"context"
	"fmt"
)

// ListForOwner returns the license identifiers in owner's catalog.
func (s *Store) ListForOwner(ctx context.Context, ownerID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier FROM licenses WHERE owner_id = ? ORDER BY identifier`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query licenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddLicense adds identifier to owner's catalog. Adding an existing
// identifier is a no-op.
func (s *Store) AddLicense(ctx context.Context, ownerID int64, identifier string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO licenses (owner_id, identifier) VALUES (?, ?) ON CONFLICT (owner_id, identifier) DO NOTHING`,
		ownerID, identifier)
	if err != nil {
		return fmt.Errorf("add license %q: %w", identifier, err)
	}
	return nil
}
