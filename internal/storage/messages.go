package storage

import (
	"context"

	"github.com/ccoin/warpz/pkg/types"
)

// SaveMessage upserts a parsed memo, possibly with a nil Body for an
// orphan memo awaiting a lazy fetch (see internal/decrypt.FetchMemo).
func (s *PostgresStore) SaveMessage(ctx context.Context, m *types.Message) error {
	query := `
		INSERT INTO messages (
			account, height, position, subject, body, sender, recipient, reply_to, read
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account, position) DO UPDATE SET body = $5, read = $9
		RETURNING id
	`
	return s.pool.QueryRow(ctx, query,
		m.Account, m.Height, m.Position, m.Subject, m.Body, m.Sender, m.Recipient, m.ReplyTo, m.Read,
	).Scan(&m.ID)
}

// ListMessages returns every message for account in height order.
func (s *PostgresStore) ListMessages(ctx context.Context, account uint32) ([]*types.Message, error) {
	query := `
		SELECT id, account, height, position, subject, body, sender, recipient, reply_to, read
		FROM messages WHERE account = $1 ORDER BY height ASC, position ASC
	`
	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.Account, &m.Height, &m.Position, &m.Subject, &m.Body, &m.Sender, &m.Recipient, &m.ReplyTo, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, nil
}

// MarkMessageRead flips a message's read flag.
func (s *PostgresStore) MarkMessageRead(ctx context.Context, id uint64, read bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET read = $2 WHERE id = $1`, id, read)
	return err
}

// SaveContact upserts an address-book entry.
func (s *PostgresStore) SaveContact(ctx context.Context, c *types.Contact) error {
	query := `
		INSERT INTO contacts (name, address) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET name = $1
		RETURNING id
	`
	return s.pool.QueryRow(ctx, query, c.Name, c.Address).Scan(&c.ID)
}

// ListContacts returns the address book.
func (s *PostgresStore) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, address FROM contacts ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Contact
	for rows.Next() {
		var c types.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Address); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, nil
}

// DeleteContact removes an address-book entry.
func (s *PostgresStore) DeleteContact(ctx context.Context, id uint64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	return err
}
