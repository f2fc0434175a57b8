package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and the rejected field values.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultControlAddress, cfg.ControlAddress)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)
	require.Equal(t, TransportRFCOMM, cfg.Transport.Kind)
	require.Equal(t, DefaultStartTemplate, cfg.Command.StartTemplate)
	require.Equal(t, DefaultMaxWaitMinutes, cfg.Command.MaxWaitMinutes)
	require.Equal(t, DefaultSnooze, cfg.Wake.Snooze)

	// Bad control address.
	cfg = &Config{ControlAddress: "no-port"}
	require.Error(t, Validate(cfg))

	// Unknown transport.
	cfg = &Config{Transport: TransportConfig{Kind: "carrier-pigeon"}}
	require.Error(t, Validate(cfg))

	// Template without placeholder.
	cfg = &Config{Command: CommandConfig{StartTemplate: "START"}}
	require.Error(t, Validate(cfg))

	// Unknown timezone.
	cfg = &Config{Timezone: "Mars/Olympus_Mons"}
	require.Error(t, Validate(cfg))
}

// TestFormatStart renders the start template.
func TestFormatStart(t *testing.T) {
	t.Parallel()

	c := CommandConfig{StartTemplate: DefaultStartTemplate}
	require.Equal(t, "START 5", c.FormatStart(5))
	require.Equal(t, "START 0", c.FormatStart(0))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.Transport.Kind = TransportTCP
	cfg.Transport.Target = "127.0.0.1:7000"
	cfg.Wake.MaxLateness = 2 * time.Minute

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, TransportTCP, loaded.Transport.Kind)
	require.Equal(t, "127.0.0.1:7000", loaded.Transport.Target)
	require.Equal(t, 2*time.Minute, loaded.Wake.MaxLateness)
	require.True(t, loaded.Transport.AutoConnect)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadOrDefault returns defaults for a missing file and errors for a broken one.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultControlAddress, cfg.ControlAddress)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("transport: [\n"), DefaultFilePermissions))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)
}
