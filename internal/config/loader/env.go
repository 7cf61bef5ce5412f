package loader

import (
	"os"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of every configuration variable.
const DefaultEnvPrefix = "INKWELL_"

// EnvLoader loads configuration from environment variables.
//
// INKWELL_CANVAS_MAX_HISTORY maps to canvas.max_history: the first word is
// the section and the rest is the key. Explicit mappings take precedence.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "INKWELL_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the shorthand variables.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL": "log.level",
		prefix + "PROVIDER":  "outline.provider",
		prefix + "MODEL":     "outline.model",
		prefix + "WIDTH":     "canvas.width",
		prefix + "HEIGHT":    "canvas.height",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// Load reads environment variables and returns a configuration map.
// Empty values count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetPath(config, path, parseValue(value))
	}

	return config, nil
}

// envToPath converts INKWELL_OUTLINE_API_KEY_ENV to outline.api_key_env.
func (l *EnvLoader) envToPath(env string) string {
	section, key, ok := strings.Cut(strings.TrimPrefix(env, l.prefix), "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(key)
}

// parseValue attempts to parse the string value into an appropriate type.
// Durations stay strings; the decoder parses them into time.Duration.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only with a decimal point so ints stay ints.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	return s
}
