package canvas

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTool is returned by ParseTool.
var ErrUnknownTool = errors.New("unknown tool")

// Tool selects how strokes paint.
type Tool int

const (
	// ToolBrush paints with the brush color.
	ToolBrush Tool = iota
	// ToolEraser paints with the surface background.
	ToolEraser
)

// String returns the tool name.
func (t Tool) String() string {
	switch t {
	case ToolBrush:
		return "brush"
	case ToolEraser:
		return "eraser"
	default:
		return "unknown"
	}
}

// Toggle returns the other tool.
func (t Tool) Toggle() Tool {
	if t == ToolEraser {
		return ToolBrush
	}
	return ToolEraser
}

// ParseTool parses a tool name.
func ParseTool(name string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "brush", "pen":
		return ToolBrush, nil
	case "eraser":
		return ToolEraser, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}
