package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/minirag/configs"
	"github.com/Aman-CERP/minirag/internal/config"
)

func TestConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the embedded template parsed over an empty config
	var fromTemplate config.Config
	require.NoError(t, yaml.Unmarshal([]byte(configs.ConfigTemplate), &fromTemplate))
	defaults := config.NewConfig()

	// Then: every value it sets is the built-in default
	assert.Equal(t, defaults.Chunking, fromTemplate.Chunking)
	assert.Equal(t, defaults.Search, fromTemplate.Search)
	assert.Equal(t, defaults.Upload, fromTemplate.Upload)
	assert.Equal(t, defaults.Storage.Backend, fromTemplate.Storage.Backend)
	assert.Equal(t, defaults.Server.Transport, fromTemplate.Server.Transport)
}

func TestConfigInit_WritesProjectConfig(t *testing.T) {
	// Given: a project directory without config
	env := newTestEnv(t)
	path := filepath.Join(env.dir, config.ProjectConfigName)

	// When
	out, err := env.run(t, "config", "init")

	// Then: the template is written
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created configuration")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigInit_KeepsExistingUnlessForced(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, env.dir, config.ProjectConfigName, "search:\n  max_results: 9\n")

	out, err := env.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "max_results: 9")

	out, err = env.run(t, "config", "init", "--force")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigInit_User(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "config", "init", "--user")

	require.NoError(t, err)
	_, err = os.Stat(config.GetUserConfigPath())
	assert.NoError(t, err)
}

func TestConfigShow_ReflectsLayers(t *testing.T) {
	// Given: a project config and an environment override
	env := newTestEnv(t)
	writeFile(t, env.dir, config.ProjectConfigName, "search:\n  scorer: idf\n")
	t.Setenv("MINIRAG_MAX_RESULTS", "9")

	// When
	out, err := env.run(t, "config", "show", "--json")

	// Then
	require.NoError(t, err, out)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "idf", cfg.Search.Scorer)
	assert.Equal(t, 9, cfg.Search.MaxResults)
	assert.Equal(t, env.dataDir, cfg.Storage.DataDir)

	out, err = env.run(t, "config", "show", "--defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "scorer: overlap")
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("MINIRAG_CHUNK_OVERLAP", "100")

	_, err := env.run(t, "config", "show")

	assert.Error(t, err)
}
