package alarm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	a, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, a)
}

// TestFileRepository_SaveLoadClear ensures Save, Load and Clear agree.
func TestFileRepository_SaveLoadClear(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	cmd, err := domain.NewCommand("START 5")
	require.NoError(t, err)

	armedAt := time.Date(2024, 3, 1, 22, 10, 0, 0, time.UTC)
	want := &domain.ScheduledAlarm{
		ID:      "7f3c",
		FireAt:  armedAt.Add(8*time.Hour + 500*time.Millisecond),
		Command: cmd,
		Handle:  "timer-1",
		ArmedAt: armedAt,
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.True(t, want.FireAt.Equal(got.FireAt))
	require.True(t, want.ArmedAt.Equal(got.ArmedAt))
	require.Equal(t, "START 5", got.Command.String())
	require.Empty(t, got.Handle)

	_, err = os.Stat(file)
	require.NoError(t, err)

	require.NoError(t, repo.Clear(context.Background()))
	require.NoError(t, repo.Clear(context.Background()))

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_Corrupt rejects files that do not describe an alarm.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty file":     "",
		"not json":       "{",
		"missing id":     `{"fire_at": "2024-03-01T06:00:00Z", "command": "STOP"}`,
		"bad time":       `{"id": "a", "fire_at": "tomorrow", "command": "STOP"}`,
		"empty command":  `{"id": "a", "fire_at": "2024-03-01T06:00:00Z", "command": ""}`,
		"bad armed time": `{"id": "a", "fire_at": "2024-03-01T06:00:00Z", "command": "STOP", "armed_at": "x"}`,
	}

	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			file := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(file, []byte(contents), 0o600))

			_, err := NewFileRepository(file).Load(context.Background())
			require.ErrorIs(t, err, ErrCorrupt)
			require.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestFileRepository_SaveReplacesWholeFile overwrites a previous alarm and
// leaves no temporary files behind.
func TestFileRepository_SaveReplacesWholeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := NewFileRepository(filepath.Join(dir, "state.json"))

	long, err := domain.NewCommand("START 30 WITH A LONGER COMMAND")
	require.NoError(t, err)

	short, err := domain.NewCommand("STOP")
	require.NoError(t, err)

	fireAt := time.Date(2024, 3, 2, 6, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Save(context.Background(), &domain.ScheduledAlarm{ID: "first-alarm", FireAt: fireAt, Command: long}))
	require.NoError(t, repo.Save(context.Background(), &domain.ScheduledAlarm{ID: "b", FireAt: fireAt, Command: short}))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", got.ID)
	require.Equal(t, "STOP", got.Command.String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "state.json", entries[0].Name())

	info, err := entries[0].Info()
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
