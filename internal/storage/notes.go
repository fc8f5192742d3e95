package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// SaveNote upserts a note by its (pool, nullifier) identity, idempotent
// across re-sync of the same range.
func (s *PostgresStore) SaveNote(ctx context.Context, n *types.Note) error {
	query := `
		INSERT INTO notes (
			account, pool, value, diversifier, rseed, position, cmx,
			nullifier, height, tx_id, output_index, excluded, spent_height
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (pool, nullifier) DO NOTHING
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		n.Account, n.Pool, n.Value, n.Diversifier, n.Rseed, n.Position, n.Cmx[:],
		n.Nullifier[:], n.Height, n.TxID[:], n.OutputIndex, n.Excluded, n.SpentHeight,
	).Scan(&n.ID)
	return err
}

// MarkNoteSpent records the confirmed spend height of a note.
func (s *PostgresStore) MarkNoteSpent(ctx context.Context, pool types.Pool, nullifier types.Hash, height uint32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notes SET spent_height = $3 WHERE pool = $1 AND nullifier = $2`,
		pool, nullifier[:], height,
	)
	return err
}

// SpendableNotes returns every unspent, non-excluded note for account in
// pool, for the planner's NoteSelector.
func (s *PostgresStore) SpendableNotes(ctx context.Context, account uint32, pool types.Pool) ([]*types.Note, error) {
	query := `
		SELECT id, account, pool, value, diversifier, rseed, position, cmx,
		       nullifier, height, tx_id, output_index, excluded, spent_height
		FROM notes
		WHERE account = $1 AND pool = $2 AND excluded = FALSE AND spent_height IS NULL
		ORDER BY value DESC
	`
	rows, err := s.pool.Query(ctx, query, account, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func scanNotes(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
}) ([]*types.Note, error) {
	var out []*types.Note
	for rows.Next() {
		var n types.Note
		var cmx, nullifier, txID []byte
		if err := rows.Scan(
			&n.ID, &n.Account, &n.Pool, &n.Value, &n.Diversifier, &n.Rseed, &n.Position, &cmx,
			&nullifier, &n.Height, &txID, &n.OutputIndex, &n.Excluded, &n.SpentHeight,
		); err != nil {
			return nil, err
		}
		copy(n.Cmx[:], cmx)
		copy(n.Nullifier[:], nullifier)
		copy(n.TxID[:], txID)
		out = append(out, &n)
	}
	return out, nil
}

// Note fetches a single note by (pool, id), for the TxBuilder's input
// resolution step.
func (s *PostgresStore) Note(ctx context.Context, pool types.Pool, id uint64) (*types.Note, error) {
	query := `
		SELECT id, account, pool, value, diversifier, rseed, position, cmx,
		       nullifier, height, tx_id, output_index, excluded, spent_height
		FROM notes WHERE pool = $1 AND id = $2
	`
	rows, err := s.pool.Query(ctx, query, pool, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, errs.ErrNotFound
	}
	return notes[0], nil
}

// UTXO fetches a single transparent output by id.
func (s *PostgresStore) UTXO(ctx context.Context, id uint64) (*types.UTXO, error) {
	var u types.UTXO
	var txID, address []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, account, tx_id, vout, address, value, height, spent_height FROM utxos WHERE id = $1`, id,
	).Scan(&u.ID, &u.Account, &txID, &u.Vout, &address, &u.Value, &u.Height, &u.SpentHeight)
	if err != nil {
		return nil, mapNoRows(err)
	}
	copy(u.TxID[:], txID)
	copy(u.Address[:], address)
	return &u, nil
}

// SaveUTXO upserts a transparent output.
func (s *PostgresStore) SaveUTXO(ctx context.Context, u *types.UTXO) error {
	query := `
		INSERT INTO utxos (account, tx_id, vout, address, value, height, spent_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_id, vout) DO NOTHING
		RETURNING id
	`
	return s.pool.QueryRow(ctx, query,
		u.Account, u.TxID[:], u.Vout, u.Address[:], u.Value, u.Height, u.SpentHeight,
	).Scan(&u.ID)
}

// SpendableUTXOs returns every unspent transparent output for account.
func (s *PostgresStore) SpendableUTXOs(ctx context.Context, account uint32) ([]*types.UTXO, error) {
	query := `
		SELECT id, account, tx_id, vout, address, value, height, spent_height
		FROM utxos WHERE account = $1 AND spent_height IS NULL
		ORDER BY value DESC
	`
	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.UTXO
	for rows.Next() {
		var u types.UTXO
		var txID, address []byte
		if err := rows.Scan(&u.ID, &u.Account, &txID, &u.Vout, &address, &u.Value, &u.Height, &u.SpentHeight); err != nil {
			return nil, err
		}
		copy(u.TxID[:], txID)
		copy(u.Address[:], address)
		out = append(out, &u)
	}
	return out, nil
}

// RewindNotes clears spent_height for notes spent above height and deletes
// notes whose height itself exceeds it, mirroring WitnessEngine.RewindTo's
// restore-without-delete-history idiom for the heights that remain.
func (s *PostgresStore) RewindNotes(ctx context.Context, height uint32) error {
	return s.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE height > $1`, height); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE notes SET spent_height = NULL WHERE spent_height > $1`, height); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM utxos WHERE height > $1`, height); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE utxos SET spent_height = NULL WHERE spent_height > $1`, height)
		return err
	})
}
