package loader

import (
	"errors"
	"io/fs"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/inkwell.toml", `
[canvas]
width = 800
background = "#ffffff"

[outline]
provider = "openai"
timeout = "30s"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/inkwell.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if v, ok := GetPath(config, "canvas.width"); !ok || v != int64(800) {
		t.Errorf("canvas.width = %v (%T), want 800", v, v)
	}
	if v, _ := GetPath(config, "outline.provider"); v != "openai" {
		t.Errorf("outline.provider = %v, want openai", v)
	}
	if v, _ := GetPath(config, "outline.timeout"); v != "30s" {
		t.Errorf("outline.timeout = %v, want 30s", v)
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml").Load()
	if err != nil || config != nil {
		t.Errorf("Load(missing) = %v, %v; want nil, nil", config, err)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[canvas\nwidth = 1\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load error = %v, want *ParseError", err)
	}
	if perr.Path != "/bad.toml" || perr.Line == 0 {
		t.Errorf("ParseError = %+v, want path and line", perr)
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/inkwell.yaml", `
palette:
  scheme: triadic
  size: 6
brush:
  width: 2.5
`)

	config, err := NewYAMLLoaderWithFS(memfs, "/inkwell.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, _ := GetPath(config, "palette.scheme"); v != "triadic" {
		t.Errorf("palette.scheme = %v", v)
	}
	if v, _ := GetPath(config, "palette.size"); v != 6 {
		t.Errorf("palette.size = %v (%T), want 6", v, v)
	}
	if v, _ := GetPath(config, "brush.width"); v != 2.5 {
		t.Errorf("brush.width = %v", v)
	}
}

func TestYAMLLoader_EmptyAndInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/empty.yaml", "")
	memfs.AddFile("/bad.yaml", "canvas: [1, 2\n")

	config, err := NewYAMLLoaderWithFS(memfs, "/empty.yaml").Load()
	if err != nil || config == nil || len(config) != 0 {
		t.Errorf("Load(empty) = %v, %v; want empty map", config, err)
	}

	var perr *ParseError
	if _, err := NewYAMLLoaderWithFS(memfs, "/bad.yaml").Load(); !errors.As(err, &perr) {
		t.Errorf("Load(bad) error = %v, want *ParseError", err)
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"a.toml", "toml", false},
		{"a.TOML", "toml", false},
		{"a.yaml", "yaml", false},
		{"a.yml", "yaml", false},
		{"a.json", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, err := ForPath(nil, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("error = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			var got string
			switch l.(type) {
			case *TOMLLoader:
				got = "toml"
			case *YAMLLoader:
				got = "yaml"
			}
			if got != tt.want {
				t.Errorf("ForPath() = %T, want %s", l, tt.want)
			}
		})
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"canvas": map[string]any{"width": 640, "height": 480},
		"log":    map[string]any{"level": "info"},
	}
	src := map[string]any{
		"canvas": map[string]any{"width": 1024},
		"log":    "flat",
	}

	got := DeepMerge(dst, src)
	if v, _ := GetPath(got, "canvas.width"); v != 1024 {
		t.Errorf("canvas.width = %v, want 1024", v)
	}
	if v, _ := GetPath(got, "canvas.height"); v != 480 {
		t.Errorf("canvas.height = %v, want 480", v)
	}
	if got["log"] != "flat" {
		t.Errorf("log = %v, want replaced", got["log"])
	}
	if DeepMerge(nil, nil) == nil {
		t.Error("DeepMerge(nil, nil) = nil")
	}
}

func TestSetGetPath(t *testing.T) {
	m := map[string]any{"brush": "scalar"}
	SetPath(m, "brush.width", 3)
	SetPath(m, "top", true)

	if v, ok := GetPath(m, "brush.width"); !ok || v != 3 {
		t.Errorf("brush.width = %v, %v", v, ok)
	}
	if v, ok := GetPath(m, "top"); !ok || v != true {
		t.Errorf("top = %v, %v", v, ok)
	}
	if _, ok := GetPath(m, "top.deeper"); ok {
		t.Error("GetPath through scalar ok = true")
	}
	if _, ok := GetPath(m, "missing"); ok {
		t.Error("GetPath(missing) ok = true")
	}
}
