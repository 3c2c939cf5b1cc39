package config

import (
	"fmt"
	"io"
	"os"

	"github.com/line-kiosk/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// MappingPreset is a named vendor field mapping that can be applied to a line
// instead of filling the six keys by hand.
type MappingPreset struct {
	Name        string             `yaml:"name" json:"name"`
	Vendor      string             `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	TrendSource string             `yaml:"trendSource,omitempty" json:"trendSource,omitempty"`
	Mapping     models.DataMapping `yaml:"mapping" json:"mapping"`
}

// PresetFile is the root of the mappings YAML file.
type PresetFile struct {
	Presets []MappingPreset `yaml:"presets" json:"presets"`
}

// LoadPresets parses the mapping presets YAML file. A missing file is not an
// error; the kiosk runs without presets.
func LoadPresets(path string) (*PresetFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PresetFile{}, nil
		}
		return nil, err
	}
	defer f.Close()

	return ParsePresetsFromReader(f)
}

// ParsePresetsFromReader parses presets from an io.Reader.
func ParsePresetsFromReader(r io.Reader) (*PresetFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pf PresetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}

	for i, p := range pf.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d: missing name", i)
		}
		if !p.Mapping.Complete() {
			return nil, fmt.Errorf("preset %q: mapping is incomplete", p.Name)
		}
	}

	return &pf, nil
}

// Find returns the preset with the given name, or nil.
func (pf *PresetFile) Find(name string) *MappingPreset {
	for i := range pf.Presets {
		if pf.Presets[i].Name == name {
			return &pf.Presets[i]
		}
	}
	return nil
}
