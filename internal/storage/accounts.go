package storage

import (
	"context"

	"github.com/ccoin/warpz/pkg/types"
)

// CreateAccount inserts a new account and assigns it an ID.
func (s *PostgresStore) CreateAccount(ctx context.Context, a *types.Account) error {
	query := `
		INSERT INTO accounts (
			name, icon, position, hidden, birth_height, capability,
			sapling_ivk, orchard_fvk, transparent_xpub
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return s.pool.QueryRow(ctx, query,
		a.Name, a.Icon, a.Position, a.Hidden, a.BirthHeight, a.Capability,
		nullIfEmpty(a.Viewing.SaplingIVK), nullIfEmpty(a.Viewing.OrchardFVK), nullIfEmpty(a.Viewing.Transparent),
	).Scan(&a.ID)
}

// GetAccount fetches an account by ID.
func (s *PostgresStore) GetAccount(ctx context.Context, id uint32) (*types.Account, error) {
	query := `
		SELECT id, name, icon, position, hidden, birth_height, capability,
		       sapling_ivk, orchard_fvk, transparent_xpub
		FROM accounts WHERE id = $1
	`
	var a types.Account
	var saplingIVK, orchardFVK, transparent []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Icon, &a.Position, &a.Hidden, &a.BirthHeight, &a.Capability,
		&saplingIVK, &orchardFVK, &transparent,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	a.Viewing = types.ViewingKeys{SaplingIVK: saplingIVK, OrchardFVK: orchardFVK, Transparent: transparent}
	return &a, nil
}

// ListAccounts returns every account ordered by Position, visible first.
func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*types.Account, error) {
	query := `
		SELECT id, name, icon, position, hidden, birth_height, capability,
		       sapling_ivk, orchard_fvk, transparent_xpub
		FROM accounts ORDER BY position ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Account
	for rows.Next() {
		var a types.Account
		var saplingIVK, orchardFVK, transparent []byte
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Icon, &a.Position, &a.Hidden, &a.BirthHeight, &a.Capability,
			&saplingIVK, &orchardFVK, &transparent,
		); err != nil {
			return nil, err
		}
		a.Viewing = types.ViewingKeys{SaplingIVK: saplingIVK, OrchardFVK: orchardFVK, Transparent: transparent}
		out = append(out, &a)
	}
	return out, nil
}

// UpdateAccountCapability downgrades an account's spend capability, e.g.
// after its spending keys are wiped from disk in favor of view-only mode.
// The caller is responsible for enforcing monotonicity via
// SpendCapability.Downgrade before calling this.
func (s *PostgresStore) UpdateAccountCapability(ctx context.Context, id uint32, cap types.SpendCapability) error {
	_, err := s.pool.Exec(ctx, `UPDATE accounts SET capability = $2 WHERE id = $1`, id, cap)
	return err
}

// SetAccountHidden toggles an account's visibility in wallet listings.
func (s *PostgresStore) SetAccountHidden(ctx context.Context, id uint32, hidden bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE accounts SET hidden = $2 WHERE id = $1`, id, hidden)
	return err
}
