package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"graphgate-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func kuzuConfig(t *testing.T, history bool) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
graph:
  backend: kuzu
kuzu:
  in_memory: true
history:
  enabled: ` + strconv.FormatBool(history) + `
  sqlite_path: ":memory:"
  table_prefix: bootstrap
`))
	require.NoError(t, err)
	return cfg
}

func TestNewServiceContainerWithHistory(t *testing.T) {
	ctx := context.Background()
	cfg := kuzuConfig(t, true)

	sc, err := NewServiceContainer(cfg, GetServerModeOptions(cfg), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sc.Close(ctx)

	require.NotNil(t, sc.History)
	require.NotNil(t, sc.HistoryStore())
	assert.Equal(t, "Kuzu", sc.Graph.Backend())

	outcome := sc.Graph.RunCypher(ctx, "RETURN 1 AS one", nil, "boot-1")
	require.False(t, outcome.Failed(), "%v", outcome.Failure)

	records, err := sc.History.ListByCorrelation(ctx, "boot-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "runCypher", records[0].Function)
}

func TestNewServiceContainerWithoutHistory(t *testing.T) {
	cfg := kuzuConfig(t, false)

	sc, err := NewServiceContainer(cfg, GetCLIOptions(cfg), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sc.Close(context.Background())

	assert.Nil(t, sc.History)
	assert.Nil(t, sc.HistoryStore())
}

func TestRequiredHistoryFailure(t *testing.T) {
	cfg := kuzuConfig(t, true)
	cfg.History.Driver = "postgres"

	_, err := NewServiceContainer(cfg, GetCLIOptions(cfg), zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported history driver")

	sc, err := NewServiceContainer(cfg, GetServerModeOptions(cfg), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sc.Close(context.Background())
	assert.Nil(t, sc.HistoryStore())
}

func TestNewDriverUnknownBackend(t *testing.T) {
	cfg := kuzuConfig(t, false)
	cfg.Graph.Backend = "dgraph"

	_, err := NewDriver(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported graph backend")
}

func TestNewServiceContainerDriverFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tests := []struct {
		name   string
		config string
	}{
		{
			name: "neo4j unknown uri scheme",
			config: `
graph: {backend: neo4j}
neo4j: {uri: "bogus://localhost:7687"}
`,
		},
		{
			name: "kuzu path cannot be opened",
			config: `
graph: {backend: kuzu}
kuzu: {path: "` + filepath.Join(blocker, "graph.kuzu") + `"}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.config + `
history:
  enabled: true
  sqlite_path: ":memory:"
`))
			require.NoError(t, err)

			driver, err := NewDriver(cfg, zaptest.NewLogger(t))
			assert.Error(t, err)
			assert.Nil(t, driver)

			assert.NotPanics(t, func() {
				sc, err := NewServiceContainer(cfg, GetServerModeOptions(cfg), zaptest.NewLogger(t))
				assert.ErrorContains(t, err, "graph driver initialization failed")
				assert.Nil(t, sc)
			})
		})
	}
}
