// Package catalog discovers the bundled pipeline presets and input samples
// offered to job submitters.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/phrazzld/graphgen-api/internal/pipeline"
)

// ErrPresetNotFound is returned for an unknown preset id.
var ErrPresetNotFound = errors.New("configuration not found")

// DefaultPresetID is preferred as the default preset when it exists.
const DefaultPresetID = "atomic"

// Preset describes one pipeline configuration file.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Mode        string `json:"mode,omitempty"`
	Description string `json:"description,omitempty"`
}

// PresetDetail is a preset with its parsed configuration.
type PresetDetail struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Path   string          `json:"path"`
	Mode   string          `json:"mode,omitempty"`
	Config pipeline.Config `json:"config"`
}

// InputSample is a file offered as a pipeline input.
type InputSample struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Catalog reads presets from ConfigRoot and samples from ResourcesRoot.
// Both are read on every call, so files added at runtime show up.
type Catalog struct {
	ConfigRoot    string
	ResourcesRoot string
}

// Presets returns the presets sorted by file name, and the default preset id.
// A preset whose YAML does not parse is still listed, without a mode.
func (c Catalog) Presets() ([]Preset, string, error) {
	paths, err := c.presetPaths()
	if err != nil {
		return nil, "", err
	}

	presets := make([]Preset, 0, len(paths))
	for _, path := range paths {
		p := Preset{ID: slug(path), Path: path}
		p.Name = displayName(p.ID)
		if cfg, err := pipeline.LoadConfig(path); err == nil {
			p.Mode = cfg.Mode()
		}
		if p.Mode != "" {
			p.Description = fmt.Sprintf("GraphGen preset (%s)", p.Mode)
		}
		presets = append(presets, p)
	}

	def := ""
	for _, p := range presets {
		if p.ID == DefaultPresetID {
			def = p.ID
			break
		}
	}
	if def == "" && len(presets) > 0 {
		def = presets[0].ID
	}
	return presets, def, nil
}

// Preset returns the preset with id and its parsed configuration.
func (c Catalog) Preset(id string) (PresetDetail, error) {
	paths, err := c.presetPaths()
	if err != nil {
		return PresetDetail{}, err
	}
	for _, path := range paths {
		if slug(path) != id {
			continue
		}
		cfg, err := pipeline.LoadConfig(path)
		if err != nil {
			return PresetDetail{}, fmt.Errorf("failed to load preset %s: %w", id, err)
		}
		return PresetDetail{
			ID:     id,
			Name:   displayName(id),
			Path:   path,
			Mode:   cfg.Mode(),
			Config: cfg,
		}, nil
	}
	return PresetDetail{}, fmt.Errorf("%w: %s", ErrPresetNotFound, id)
}

// Inputs returns the regular files in ResourcesRoot sorted by name.
func (c Catalog) Inputs() ([]InputSample, error) {
	entries, err := readDir(c.ResourcesRoot)
	if err != nil {
		return nil, err
	}

	inputs := []InputSample{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		inputs = append(inputs, InputSample{
			Name:      entry.Name(),
			Path:      filepath.Join(c.ResourcesRoot, entry.Name()),
			SizeBytes: info.Size(),
		})
	}
	return inputs, nil
}

func (c Catalog) presetPaths() ([]string, error) {
	entries, err := readDir(c.ConfigRoot)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == ".yaml" {
			paths = append(paths, filepath.Join(c.ConfigRoot, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// readDir treats an unset or missing directory as empty.
func readDir(dir string) ([]os.DirEntry, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	return entries, nil
}

func slug(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(stem, "_config")
}

// displayName title-cases the words of a slug: "multi_hop" becomes "Multi Hop".
func displayName(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
