package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `read:
  input_file: resources/input_examples/raw_demo.jsonl
split:
  chunk_size: 1024
  chunk_overlap: 100
search:
  enabled: false
quiz_and_judge:
  enabled: true
  quiz_samples: 2
partition:
  method: ece
  method_params:
    max_units_per_community: 20
generate:
  mode: cot
  data_format: Sharegpt
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cot_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "cot", cfg.Mode())
	assert.Equal(t, 1024, cfg.Section("split").Int("chunk_size", 0))
	assert.True(t, cfg.Section("quiz_and_judge").Bool("enabled"))
	assert.Equal(t, 20, cfg.Section("partition").Section("method_params").Int("max_units_per_community", 0))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, t.TempDir(), ""))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, t.TempDir(), "generate: [unclosed"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := Config{
		"generate": map[string]any{"mode": "cot", "data_format": "Sharegpt"},
		"split":    map[string]any{"chunk_size": 1024},
		"tags":     []any{"a"},
	}

	tests := []struct {
		name      string
		overrides map[string]any
		check     func(t *testing.T, merged Config)
	}{
		{
			name:      "nested key replaced, siblings kept",
			overrides: map[string]any{"generate": map[string]any{"mode": "atomic"}},
			check: func(t *testing.T, merged Config) {
				assert.Equal(t, "atomic", merged.Mode())
				assert.Equal(t, "Sharegpt", merged.Section("generate").String("data_format", ""))
			},
		},
		{
			name:      "mapping replaced by scalar",
			overrides: map[string]any{"split": "none"},
			check: func(t *testing.T, merged Config) {
				assert.Equal(t, "none", merged["split"])
			},
		},
		{
			name:      "scalar replaced by mapping",
			overrides: map[string]any{"tags": map[string]any{"x": 1}},
			check: func(t *testing.T, merged Config) {
				assert.Equal(t, map[string]any{"x": 1}, merged["tags"])
			},
		},
		{
			name:      "new top-level section",
			overrides: map[string]any{"search": map[string]any{"enabled": true}},
			check: func(t *testing.T, merged Config) {
				assert.True(t, merged.Section("search").Bool("enabled"))
			},
		},
		{
			name:      "no overrides",
			overrides: nil,
			check: func(t *testing.T, merged Config) {
				assert.Equal(t, base, merged)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Merge(base, tt.overrides))
		})
	}

	// inputs are never modified
	assert.Equal(t, "cot", base.Mode())
	assert.Equal(t, []any{"a"}, base["tags"])
}

func TestMerge_ResultSharesNothingWithInputs(t *testing.T) {
	overrides := map[string]any{"partition": map[string]any{"method_params": map[string]any{"max_units_per_community": 5}}}
	merged := Merge(Config{}, overrides)

	merged.Section("partition").Section("method_params")["max_units_per_community"] = 99
	assert.Equal(t, 5, overrides["partition"].(map[string]any)["method_params"].(map[string]any)["max_units_per_community"])
}

func TestLoadConfig_NestedSectionsArePlainMaps(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), sampleConfig))
	require.NoError(t, err)

	assert.IsType(t, map[string]any{}, cfg["generate"])
	assert.IsType(t, map[string]any{}, cfg.Section("partition")["method_params"])
	assert.NoError(t, cfg.Require([2]string{"read", "input_file"}, [2]string{"generate", "mode"}))
}

func TestSection_AcceptsConfigValues(t *testing.T) {
	cfg := Config{"generate": Config{"mode": "multi_hop"}}
	assert.Equal(t, "multi_hop", cfg.Mode())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Merge(Config{"generate": map[string]any{"mode": "cot"}}, map[string]any{"generate": map[string]any{"mode": "atomic"}})

	path := filepath.Join(dir, ConfigSnapshotName)
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "atomic", loaded.Mode())

	assert.Error(t, SaveConfig(filepath.Join(dir, "missing", "config.yaml"), cfg))
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		"int":    3,
		"float":  float64(7),
		"str":    "12",
		"bool":   true,
		"empty":  "",
		"nested": "not a map",
	}

	assert.Equal(t, 3, cfg.Int("int", 0))
	assert.Equal(t, 7, cfg.Int("float", 0))
	assert.Equal(t, 12, cfg.Int("str", 0))
	assert.Equal(t, 9, cfg.Int("missing", 9))
	assert.Equal(t, "def", cfg.String("empty", "def"))
	assert.Equal(t, "3", cfg.String("int", ""))
	assert.True(t, cfg.Bool("bool"))
	assert.False(t, cfg.Bool("str"))
	assert.Empty(t, cfg.Section("nested"))
	assert.Equal(t, "", cfg.Mode())
}

func TestRequire(t *testing.T) {
	cfg := Config{"read": map[string]any{"input_file": "x.txt"}, "generate": map[string]any{}}

	assert.NoError(t, cfg.Require([2]string{"read", "input_file"}, [2]string{"generate", ""}))

	err := cfg.Require([2]string{"generate", "mode"}, [2]string{"split", ""})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), "generate.mode")
	assert.Contains(t, err.Error(), "split")
}

func TestLogFileName(t *testing.T) {
	assert.Equal(t, "1718000000_atomic.log", LogFileName("1718000000", "atomic"))
	assert.Equal(t, "/out/data/graphgen/1718000000/1718000000_cot.log",
		filepath.ToSlash(LogFilePath("/out/data/graphgen/1718000000", Config{"generate": map[string]any{"mode": "cot"}})))
	assert.Equal(t, "42", FormatRunID(42))
}
