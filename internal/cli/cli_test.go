package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expensedash/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "expenses.db"))
	t.Setenv("COLLECTION", "expenses")
	t.Setenv("RECEIPTS_DIR", filepath.Join(dir, "receipts"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func addGroceries(t *testing.T, merchant, amount string) string {
	t.Helper()
	out, err := run(t, "add",
		"--date", "2024-03-01",
		"--merchant", merchant,
		"--category", string(core.Groceries),
		"--amount", amount)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)
	return id
}

func TestAddListRemove(t *testing.T) {
	setupEnv(t)

	id := addGroceries(t, "Costco", "82.10")

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Costco")
	assert.Contains(t, out, "82.10")

	out, err = run(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:      82.10")
	assert.Contains(t, out, "Count:      1")
	assert.Contains(t, out, "2024-03")

	out, err = run(t, "remove", id)
	require.NoError(t, err)
	assert.Equal(t, "Expense removed.\n", out)

	out, err = run(t, "remove", id)
	require.NoError(t, err)
	assert.Equal(t, "No expense with that id; nothing removed.\n", out)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "No expenses recorded in expenses.\n", out)
}

func TestListFiltersAndLimits(t *testing.T) {
	setupEnv(t)

	addGroceries(t, "Costco", "10")
	addGroceries(t, "Safeway", "20")
	_, err := run(t, "add",
		"--date", "2024-04-02",
		"--merchant", "Transit",
		"--category", string(core.Transport),
		"--amount", "3.25")
	require.NoError(t, err)

	out, err := run(t, "list", "--category", string(core.Transport))
	require.NoError(t, err)
	assert.Contains(t, out, "Transit")
	assert.NotContains(t, out, "Costco")

	out, err = run(t, "list", "--limit", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "header plus one row")
	assert.Contains(t, lines[1], "Transit", "newest first")

	out, err = run(t, "summary", "--month", "2024-03")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:      30.00")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "add", "--merchant", "Costco", "--category", string(core.Groceries), "--amount", "abc")
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, 2, exitCode(err))

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No expenses recorded")
}

func TestExportWritesWorkbook(t *testing.T) {
	dir := setupEnv(t)
	addGroceries(t, "Costco", "12.50")

	path := filepath.Join(dir, "out.xlsx")
	out, err := run(t, "export", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, "Exported 1 expenses to "+path+"\n", out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Migrations applied for sqlite backend.\n", out)

	out, err = run(t, "--backend", "memory", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Backend memory has no schema to migrate.\n", out)
}

func TestInvalidConfigurationFailsEarly(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "--backend", "bogus", "list")
	require.Error(t, err)
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
	assert.Equal(t, 1, exitCode(err))

	_, err = run(t, "--collection", "bad name!", "list")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestServeInterruptExits130(t *testing.T) {
	setupEnv(t)
	t.Setenv("DATA_BACKEND", "memory")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(time.Second, cancel)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"serve", "--port", "0"})

	err := cmd.ExecuteContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 130, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", core.Errorf(core.KindConfiguration, "op", "bad"), 1},
		{"connection", core.Errorf(core.KindConnection, "op", "down"), 1},
		{"validation", core.Errorf(core.KindValidation, "op", "bad input"), 2},
		{"write", core.Errorf(core.KindWrite, "op", "rejected"), 2},
		{"canceled", context.Canceled, 130},
		{"plain", errors.New("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
