package event

// HistoryChanged is published after every history notification.
type HistoryChanged struct {
	CanUndo bool
	CanRedo bool
	Len     int
	Cursor  int
}

// CanvasCommitted is published after an edit is committed.
type CanvasCommitted struct {
	Label string
	Len   int
}

// OutlineRequested is published when generation starts.
type OutlineRequested struct {
	Prompt string
}

// OutlineCompleted is published when an outline was applied.
type OutlineCompleted struct {
	Prompt        string
	Width, Height int
}

// OutlineFailed is published when generation failed.
type OutlineFailed struct {
	Prompt string
	Err    error
}

// PaletteChanged is published when the active palette changes.
type PaletteChanged struct {
	Scheme string
	Colors []string
}

// ConfigReloaded is published after the config file was reloaded.
type ConfigReloaded struct {
	Path string
}
