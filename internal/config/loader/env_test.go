package loader

import "testing"

func envLoader(vars ...string) *EnvLoader {
	l := NewEnvLoader(DefaultEnvPrefix)
	l.environ = func() []string { return vars }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := envLoader(
		"INKWELL_LOG_LEVEL=debug",
		"INKWELL_CANVAS_MAX_HISTORY=50",
		"INKWELL_OUTLINE_API_KEY_ENV=MY_KEY",
		"INKWELL_BRUSH_WIDTH=2.5",
		"INKWELL_SCRIPT_TIMEOUT=5s",
		"INKWELL_PROVIDER=anthropic",
		"HOME=/root",
		"INKWELL_=ignored",
	)
	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"log.level", "debug"},
		{"canvas.max_history", int64(50)},
		{"outline.api_key_env", "MY_KEY"},
		{"brush.width", 2.5},
		{"script.timeout", "5s"},
		{"outline.provider", "anthropic"},
	}
	for _, tt := range tests {
		if got, ok := GetPath(config, tt.path); !ok || got != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.path, got, got, tt.want)
		}
	}
	if len(config) != 5 {
		t.Errorf("sections = %v, want 5", config)
	}
}

func TestEnvLoader_AddMapping(t *testing.T) {
	l := envLoader("INKWELL_BG=#000000")
	l.AddMapping("INKWELL_BG", "canvas.background")

	config, _ := l.Load()
	if got, _ := GetPath(config, "canvas.background"); got != "#000000" {
		t.Errorf("canvas.background = %v", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"OFF", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"1.5.3", "1.5.3"},
		{"30s", "30s"},
		{"#ff0000", "#ff0000"},
	}

	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}
}
