package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-sniper/internal/db/dbtest"
)

func TestFiles(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_snipe_runs.sql"}, files)
}

func TestUp_AppliesPendingInTransaction(t *testing.T) {
	fake := &dbtest.Fake{}
	fake.On("SELECT EXISTS", []any{false})

	applied, err := Up(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_snipe_runs.sql"}, applied)

	assert.Len(t, fake.Execs("applied_at TIMESTAMPTZ"), 1)
	assert.Len(t, fake.Execs("CREATE TABLE IF NOT EXISTS snipe_runs"), 1)
	inserts := fake.Execs("INSERT INTO schema_migrations")
	require.Len(t, inserts, 1)
	assert.Equal(t, []any{"001_snipe_runs.sql"}, inserts[0].Args)
	assert.Len(t, fake.Execs("BEGIN"), 1)
	assert.Len(t, fake.Execs("COMMIT"), 1)
}

func TestUp_SkipsApplied(t *testing.T) {
	fake := &dbtest.Fake{}
	fake.On("SELECT EXISTS", []any{true})

	applied, err := Up(context.Background(), fake)
	require.NoError(t, err)
	assert.Empty(t, applied)

	assert.Empty(t, fake.Execs("snipe_runs"))
	assert.Empty(t, fake.Execs("BEGIN"))
}

func TestUp_RollsBackFailingFile(t *testing.T) {
	fake := &dbtest.Fake{}
	fake.On("SELECT EXISTS", []any{false})
	fake.OnError("CREATE TABLE IF NOT EXISTS snipe_runs", errors.New("permission denied"))

	applied, err := Up(context.Background(), fake)
	assert.ErrorContains(t, err, "apply 001_snipe_runs.sql: permission denied")
	assert.Empty(t, applied)
	assert.Len(t, fake.Execs("ROLLBACK"), 1)
	assert.Empty(t, fake.Execs("INSERT INTO schema_migrations"))
}

func TestPending_LedgerError(t *testing.T) {
	fake := &dbtest.Fake{ExecErr: errors.New("read-only transaction")}

	_, err := Pending(context.Background(), fake)
	assert.ErrorContains(t, err, "create ledger")
}
