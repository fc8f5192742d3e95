// Package storage is warpz's transactional persistence layer for
// accounts, notes, UTXOs, commitment-tree nodes, checkpoints, nullifiers,
// messages, and contacts. Built on jackc/pgx/v5 + pgxpool, a
// Config/DefaultConfig constructor shape, nullIfEmpty/nullIfZero helpers,
// ON CONFLICT DO NOTHING for idempotent inserts, and explicit
// tx.Begin/Commit/Rollback for multi-statement updates.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccoin/warpz/internal/errs"
)

// PostgresStore implements warpz's Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns sane local defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "warpz",
		Password: "",
		Database: "warpz",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresStore opens and pings a connection pool.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Tx runs f inside a single transaction, committing on success and rolling
// back on any error (including a panic, which it re-raises after
// rollback).
func (s *PostgresStore) Tx(ctx context.Context, f func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", errs.ErrTransport, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := f(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", errs.ErrTransport, err)
	}
	return nil
}

func mapNoRows(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

func nullIfEmpty(b []byte) interface{} {
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	return nil
}

func nullIfZero(v uint32) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
