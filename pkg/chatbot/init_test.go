package chatbot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/config"
	"github.com/devxilz/mcp-chatbot/pkg/metrics"
	"github.com/devxilz/mcp-chatbot/pkg/writer"
)

func TestNewFromConfig_Backends(t *testing.T) {
	tests := []struct {
		name  string
		setup func(cfg *config.Config, dir string)
	}{
		{"mock", func(cfg *config.Config, dir string) {}},
		{"boltdb", func(cfg *config.Config, dir string) {
			cfg.Memory.Backend = config.BackendBoltDB
			cfg.Memory.BoltDB.Path = filepath.Join(dir, "nested", "memories.db")
		}},
		{"chromemgo", func(cfg *config.Config, dir string) {
			cfg.Memory.Backend = config.BackendChromemGo
			cfg.Memory.ChromemGo.Path = filepath.Join(dir, "chromem")
			cfg.Memory.ChromemGo.Collection = "test-memories"
		}},
		{"sqlite", func(cfg *config.Config, dir string) {
			cfg.Memory.Backend = config.BackendSQLite
			cfg.Memory.SQLite.DSN = filepath.Join(dir, "memories.sqlite")
		}},
		{"sqlite store with cache", func(cfg *config.Config, dir string) {
			cfg.Store.Driver = config.StoreSQLite
			cfg.Store.DSN = filepath.Join(dir, "chat.sqlite")
			cfg.Embedding.Cache.Enabled = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Default()
			tt.setup(cfg, t.TempDir())

			svc, err := NewFromConfig(ctx, cfg)
			require.NoError(t, err)
			defer svc.Close()

			reply, err := svc.Turn(ctx, "u1", "s1", "I want to run a marathon next year")
			require.NoError(t, err)
			assert.NotEmpty(t, reply.Text)
			// the mock classifier answer is not JSON, so the default type applies
			assert.Equal(t, writer.ActionStore, reply.Decision.Action)
			assert.NotEmpty(t, reply.Decision.MemoryID)

			records, err := svc.Recall(ctx, "u1", 10)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "I want to run a marathon next year", records[0].Text)
		})
	}
}

func TestNewFromConfig_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Memory.Backend = config.BackendBoltDB
	cfg.Memory.BoltDB.Path = filepath.Join(dir, "memories.db")
	cfg.Store.Driver = config.StoreSQLite
	cfg.Store.DSN = filepath.Join(dir, "chat.sqlite")

	svc, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	_, err = svc.Turn(ctx, "u1", "s1", "I want to run a marathon next year")
	require.NoError(t, err)
	require.NoError(t, svc.SaveProfile(ctx, "u1", map[string]interface{}{"name": "Ada"}))
	require.NoError(t, svc.Close())

	reopened, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recall(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	p, err := reopened.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p["name"])
}

func TestNewFromConfig_Metrics(t *testing.T) {
	ctx := context.Background()
	mt := metrics.New(prometheus.NewRegistry())

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	svc, err := NewFromConfig(ctx, cfg, WithMetrics(mt))
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Turn(ctx, "u1", "s1", "I want to run a marathon next year")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(mt.WriteDecisions.WithLabelValues(string(writer.ActionStore))))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.MemoriesStored.WithLabelValues("fact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Searches))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.ClassifierFallbacks.WithLabelValues("default")))
}

func TestNewFromConfig_LuaHooks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	script := `
function before_encode(m)
  if string.find(m.text, "secret") then
    return false
  end
  return true
end
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(script), 0o600))

	cfg := config.Default()
	cfg.Scripting.Enabled = true
	cfg.Scripting.Paths = []string{dir, filepath.Join(dir, "missing")}

	svc, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Turn(ctx, "u1", "s1", "my secret password is hunter2")
	require.NoError(t, err)
	_, err = svc.Turn(ctx, "u1", "s1", "I want to run a marathon next year")
	require.NoError(t, err)

	records, err := svc.Recall(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "I want to run a marathon next year", records[0].Text)
}

func TestNewFromConfig_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Memory.Backend = "redis"
	_, err := NewFromConfig(ctx, cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Reasoning.Provider = "llama"
	_, err = NewFromConfig(ctx, cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Store.Driver = "mysql"
	_, err = NewFromConfig(ctx, cfg)
	assert.Error(t, err)
}

func TestNewFromConfigFile(t *testing.T) {
	for _, k := range []string{"CHATBOT_MEMORY_BACKEND", "CHATBOT_REASONING_PROVIDER", "CHATBOT_STORE_DRIVER", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "chatbot.yaml")
	yaml := "memory:\n  backend: mock\nreasoning:\n  provider: mock\napp:\n  name: file-bot\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	svc, err := NewFromConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer svc.Close()
	assert.Equal(t, "file-bot", svc.Health().App)

	_, err = NewFromConfigFile(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
