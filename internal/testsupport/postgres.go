package testsupport

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"minerva/internal/adapters/config"
	"minerva/internal/adapters/postgres"
)

// PostgresTestHelper hands integration tests a transaction that is rolled
// back on cleanup, so tests never leave rows behind and can run against a
// shared database.
type PostgresTestHelper struct {
	client *postgres.Client
	tx     *sqlx.Tx
	once   sync.Once
}

// NewTestPostgres builds a helper from the environment, skipping the test
// when the integration database is not configured.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()
	return NewPostgresTestHelper(t, LoadDatabaseConfigsFromEnv(t).Postgres)
}

// NewPostgresTestHelper opens a connection and begins the test transaction
func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("begin test transaction: %v", err)
	}

	h := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(func() {
		h.Rollback()
		_ = client.Close()
	})

	return h
}

// Tx returns the test transaction; repositories built on sqlx.ExtContext
// accept it directly.
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB returns the raw handle for tests that need to cross transactions
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

// Rollback discards everything the test wrote. Safe to call more than once.
func (h *PostgresTestHelper) Rollback() {
	h.once.Do(func() {
		_ = h.tx.Rollback()
	})
}
