package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/garnizeh/talentflow/internal/db"
	"github.com/garnizeh/talentflow/pkg/repository"
)

// Store implements repository.Store using the internal DB wrapper.
type Store struct {
	conn   *db.DB
	logger *slog.Logger
}

// txRepo implements repository.Tx on top of one open *sql.Tx.
type txRepo struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// Ensure Store and txRepo implement the public interfaces.
var _ repository.Store = (*Store)(nil)
var _ repository.Tx = (*txRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Store{conn: conn, logger: logger}
}

func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.conn.ReadTx(ctx, func(tx *sql.Tx) error {
		return fn(&txRepo{tx: tx, logger: s.logger})
	})
}

func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&txRepo{tx: tx, logger: s.logger})
	})
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(b), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func requireAffected(res sql.Result, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
