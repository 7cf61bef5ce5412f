package loader

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct {
	fs   FileSystem
	path string
}

// NewYAMLLoader creates a new YAML loader for the given path.
func NewYAMLLoader(path string) *YAMLLoader {
	return NewYAMLLoaderWithFS(DefaultFS(), path)
}

// NewYAMLLoaderWithFS creates a YAML loader with a custom file system.
func NewYAMLLoaderWithFS(fs FileSystem, path string) *YAMLLoader {
	return &YAMLLoader{fs: fs, path: path}
}

// Load reads and parses the configured file.
func (l *YAMLLoader) Load() (map[string]any, error) {
	data, err := readFile(l.fs, l.path)
	if err != nil || data == nil {
		return nil, err
	}
	return ParseYAML(l.path, data)
}

// ParseYAML parses YAML data into a map. An empty document yields an empty
// map.
func ParseYAML(source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var terr *yaml.TypeError
		if errors.As(err, &terr) && len(terr.Errors) > 0 {
			perr.Message = terr.Errors[0]
		}
		return nil, perr
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}
