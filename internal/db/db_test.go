package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/talentflow/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := dbpkg.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	require.NotNil(t, d.GetConn())

	assert.Equal(t, 1, d.GetConn().Stats().MaxOpenConnections)
	require.NoError(t, d.Close())
}

func TestExec_QueryRow(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(ctx, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);`)
	require.NoError(t, err)

	res, err := d.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "foo")
	require.NoError(t, err)
	lastID, err := res.LastInsertId()
	require.NoError(t, err)
	require.NotZero(t, lastID)

	var name string
	require.NoError(t, d.QueryRow(ctx, `SELECT name FROM items WHERE id = ?`, lastID).Scan(&name))
	assert.Equal(t, "foo", name)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, d.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Zero(t, count)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = d.WithTx(ctx, func(tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
			panic("mid-transaction")
		})
	})

	var count int
	require.NoError(t, d.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Zero(t, count)
}

func TestNew_BadDSN(t *testing.T) {
	ctx := context.Background()
	_, err := dbpkg.New(ctx, "/nonexistent-dir/sub/talentflow.db", nil)
	assert.Error(t, err)
}
