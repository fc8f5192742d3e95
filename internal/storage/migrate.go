package storage

import (
	"context"
	"fmt"

	"github.com/ccoin/warpz/internal/errs"
)

// schemaVersion is a (major, minor) pair; major bumps are breaking,
// minor bumps are additive. Migrations are idempotent and monotonic: a
// downgrade request fails rather than silently running migrations backward.
type schemaVersion struct {
	Major, Minor int
}

// migrationStep applies one version bump, given the version it upgrades
// from.
type migrationStep struct {
	from schemaVersion
	to   schemaVersion
	run  func(ctx context.Context, s *PostgresStore) error
}

// migrations lists every upgrade step in order. Each entry must be
// idempotent (safe to re-run if a prior attempt crashed mid-migration) via
// `CREATE TABLE IF NOT EXISTS` / `ADD COLUMN IF NOT EXISTS` at the DDL level.
var migrations = []migrationStep{
	{
		from: schemaVersion{0, 0},
		to:   schemaVersion{1, 0},
		run: func(ctx context.Context, s *PostgresStore) error {
			_, err := s.pool.Exec(ctx, schemaV1)
			return err
		},
	},
}

// CurrentSchemaVersion reads the schema_version table, returning (0,0) if
// the store has never been migrated.
func (s *PostgresStore) CurrentSchemaVersion(ctx context.Context) (int, int, error) {
	var major, minor int
	err := s.pool.QueryRow(ctx, `SELECT major, minor FROM schema_version ORDER BY major DESC, minor DESC LIMIT 1`).Scan(&major, &minor)
	if err != nil {
		if mapNoRows(err) == errs.ErrNotFound {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	return major, minor, nil
}

// Migrate brings the store from its current schema version to (toMajor,
// toMinor), running every intervening step once. Downgrades are rejected.
func (s *PostgresStore) Migrate(ctx context.Context, toMajor, toMinor int) error {
	curMajor, curMinor, err := s.CurrentSchemaVersion(ctx)
	if err != nil {
		return err
	}
	current := schemaVersion{curMajor, curMinor}
	target := schemaVersion{toMajor, toMinor}

	if target.Major < current.Major || (target.Major == current.Major && target.Minor < current.Minor) {
		return errs.ErrMigrationDowngrade
	}

	applied := current
	for _, step := range migrations {
		if step.from != applied {
			continue
		}
		if step.to.Major > target.Major || (step.to.Major == target.Major && step.to.Minor > target.Minor) {
			break
		}
		if err := step.run(ctx, s); err != nil {
			return fmt.Errorf("migrate %v -> %v: %w", step.from, step.to, err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_version (major, minor) VALUES ($1, $2)`, step.to.Major, step.to.Minor); err != nil {
			return err
		}
		applied = step.to
	}
	return nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	major INT NOT NULL,
	minor INT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (major, minor)
);

CREATE TABLE IF NOT EXISTS accounts (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	position INT NOT NULL DEFAULT 0,
	hidden BOOLEAN NOT NULL DEFAULT FALSE,
	birth_height INT NOT NULL,
	capability SMALLINT NOT NULL,
	sapling_ivk BYTEA,
	orchard_fvk BYTEA,
	transparent_xpub BYTEA
);

CREATE TABLE IF NOT EXISTS notes (
	id BIGSERIAL PRIMARY KEY,
	account INT NOT NULL REFERENCES accounts(id),
	pool SMALLINT NOT NULL,
	value BIGINT NOT NULL,
	diversifier BYTEA,
	rseed BYTEA,
	position BIGINT NOT NULL,
	cmx BYTEA NOT NULL,
	nullifier BYTEA NOT NULL,
	height INT NOT NULL,
	tx_id BYTEA NOT NULL,
	output_index INT NOT NULL,
	excluded BOOLEAN NOT NULL DEFAULT FALSE,
	spent_height INT,
	UNIQUE (pool, nullifier)
);

CREATE TABLE IF NOT EXISTS utxos (
	id BIGSERIAL PRIMARY KEY,
	account INT NOT NULL REFERENCES accounts(id),
	tx_id BYTEA NOT NULL,
	vout INT NOT NULL,
	address BYTEA NOT NULL,
	value BIGINT NOT NULL,
	height INT NOT NULL,
	spent_height INT,
	UNIQUE (tx_id, vout)
);

CREATE TABLE IF NOT EXISTS tree_nodes (
	pool SMALLINT NOT NULL,
	level INT NOT NULL,
	index BIGINT NOT NULL,
	hash BYTEA NOT NULL,
	PRIMARY KEY (pool, level, index)
);

CREATE TABLE IF NOT EXISTS tree_meta (
	pool SMALLINT PRIMARY KEY,
	root BYTEA,
	size BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checkpoints (
	height INT PRIMARY KEY,
	block_hash BYTEA NOT NULL,
	timestamp BIGINT NOT NULL,
	sapling_tree JSONB NOT NULL,
	orchard_tree JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS nullifiers (
	pool SMALLINT NOT NULL,
	nullifier BYTEA NOT NULL,
	tx_id BYTEA NOT NULL,
	height INT NOT NULL,
	PRIMARY KEY (pool, nullifier)
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	account INT NOT NULL REFERENCES accounts(id),
	height INT NOT NULL,
	position BIGINT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	body TEXT,
	sender TEXT NOT NULL DEFAULT '',
	recipient TEXT NOT NULL DEFAULT '',
	reply_to BIGINT,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (account, position)
);

CREATE TABLE IF NOT EXISTS contacts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT NOT NULL UNIQUE
);
`
