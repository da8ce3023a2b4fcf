package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydromet/datanode/internal/config"
	"github.com/hydromet/datanode/internal/formats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
	"formats": {
		"logger-xml": {
			"anchor": ["data", "row"],
			"parameters": [
				{"Parameter": "MonitoringPoint", "TagHierarchy": ["data", "row", "station"]},
				{"Parameter": "ObservedPropertyValue", "TagHierarchy": ["data", "row", "value"], "Symbol": "h"},
				{"Parameter": "Date", "TagHierarchy": ["data", "row", "time"]}
			]
		}
	},
	"symbolMappings": {
		"h": {"OBS": "WL"}
	}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "datanode.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "Setup: writing config file")
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		noFile  bool

		wantErr bool
	}{
		"Valid configuration": {content: validConfig},
		"Empty object":        {content: `{}`},

		"Missing file":     {noFile: true, wantErr: true},
		"Not JSON":         {content: `formats:`, wantErr: true},
		"Invalid format":   {content: `{"formats": {"bad": {"parameters": [{"Parameter": "Nope"}]}}}`, wantErr: true},
		"Empty parameters": {content: `{"formats": {"bad": {"parameters": []}}}`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "missing.json")
			if !tc.noFile {
				path = writeConfig(t, tc.content)
			}

			cm := config.New(path)
			err := cm.Load()
			if tc.wantErr {
				require.Error(t, err, "Load should reject the configuration")
				return
			}
			require.NoError(t, err, "Load should not return an error")
		})
	}
}

func TestFormatLookup(t *testing.T) {
	t.Parallel()

	cm := config.New(writeConfig(t, validConfig))
	require.NoError(t, cm.Load(), "Setup: Load should not return an error")

	def, ok := cm.Format("logger-xml")
	require.True(t, ok, "declared format should be found")
	assert.Equal(t, []string{"data", "row"}, def.Anchor, "anchor mismatch")
	require.NotNil(t, def.Parameters, "parameters should be built")

	_, ok = def.Parameters.MonitoringPointParameter()
	assert.True(t, ok, "monitoring point parameter should be present")
	assert.Len(t, def.Parameters.ByType(formats.Date), 1, "date parameter should be present")

	_, ok = cm.Format("unknown")
	assert.False(t, ok, "undeclared format should not be found")

	symbols := cm.SymbolMappings()
	assert.Equal(t, "h", symbols.MapSymbol("WL", "OBS"), "symbol mapping should be loaded")
}

func TestInvalidFileRejectedAsWhole(t *testing.T) {
	t.Parallel()

	// One bad format must not partially apply the file.
	content := `{
		"formats": {
			"good": {"parameters": [{"Parameter": "MonitoringPoint", "TagHierarchy": ["s"]}]},
			"bad": {"parameters": [{"Parameter": "Nope"}]}
		}
	}`

	cm := config.New(writeConfig(t, content))
	require.Error(t, cm.Load(), "Load should reject the file")

	_, ok := cm.Format("good")
	assert.False(t, ok, "no format of a rejected file may become visible")
}

func TestWatchReload(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, validConfig)
	cm := config.New(path)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	changes, errorsCh, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not return an error")

	_, ok := cm.Format("logger-xml")
	require.True(t, ok, "initial load should happen on Watch")

	// Rewrite the file with a second format and wait for the reload.
	updated := `{
		"formats": {
			"logger-xml": {"parameters": [{"Parameter": "MonitoringPoint", "TagHierarchy": ["s"]}]},
			"second": {"parameters": [{"Parameter": "MonitoringPoint", "TagHierarchy": ["s"]}]}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600), "Setup: rewriting config file")

	select {
	case <-changes:
	case err := <-errorsCh:
		require.NoError(t, err, "watcher should not fail")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the configuration reload")
	}

	_, ok = cm.Format("second")
	assert.True(t, ok, "the new format should be visible after reload")
}

func TestWatchSurvivesBadRewrite(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, validConfig)
	cm := config.New(path)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	_, _, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not return an error")

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600), "Setup: rewriting config file")

	// The reload fails, but the last good configuration stays active.
	require.Eventually(t, func() bool {
		_, ok := cm.Format("logger-xml")
		return ok
	}, 5*time.Second, 50*time.Millisecond, "last good configuration should survive a bad rewrite")
}
