package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is a parsed pipeline configuration document. Nested sections are
// map[string]any values.
type Config map[string]any

// LoadConfig reads and parses the YAML document at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Decoding into the named type would make yaml.v3 decode every nested
	// mapping as Config too.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	return Config(raw), nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(map[string]any(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Merge returns a new Config with overrides applied onto base. When a key holds
// a mapping on both sides the mappings are merged recursively; otherwise the
// override value replaces the base value. Neither input is modified.
func Merge(base Config, overrides map[string]any) Config {
	merged := Config(CopyMap(base))
	mergeInto(merged, overrides)
	return merged
}

func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[key] = copyValue(value)
	}
}

// CopyMap deep-copies nested maps and slices so the copy shares no mutable
// state with m. A nil map copies to an empty one.
func CopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case Config:
		return CopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// Section returns the named nested mapping, or an empty Config if it is
// missing or not a mapping.
func (c Config) Section(name string) Config {
	switch m := c[name].(type) {
	case map[string]any:
		return m
	case Config:
		return m
	}
	return Config{}
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// String returns the string at key, or def.
func (c Config) String(key, def string) string {
	switch v := c[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case int, int64, float64:
		return fmt.Sprint(v)
	}
	return def
}

// Int returns the integer at key, or def. Values decoded from JSON arrive as
// float64 and are truncated.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean at key; anything else is false.
func (c Config) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Mode returns generate.mode, or "" when unset.
func (c Config) Mode() string {
	return c.Section("generate").String("mode", "")
}

// ErrMissingKey is wrapped by Require for absent configuration keys.
var ErrMissingKey = errors.New("missing configuration key")

// Require checks that every section.key path in keys is present.
func (c Config) Require(keys ...[2]string) error {
	var errs []error
	for _, k := range keys {
		section, key := k[0], k[1]
		if !c.Has(section) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingKey, section))
			continue
		}
		if key != "" && !c.Section(section).Has(key) {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrMissingKey, section, key))
		}
	}
	return errors.Join(errs...)
}
