package event

import "strings"

// Topic represents a hierarchical event type using dot notation.
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "."
)

// Topics published by inkwell components.
const (
	TopicHistoryChanged   Topic = "history.changed"
	TopicCanvasCommitted  Topic = "canvas.committed"
	TopicOutlineRequested Topic = "outline.requested"
	TopicOutlineCompleted Topic = "outline.completed"
	TopicOutlineFailed    Topic = "outline.failed"
	TopicPaletteChanged   Topic = "palette.changed"
	TopicConfigReloaded   Topic = "config.reloaded"
)

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Validate checks that the topic has no empty segments.
func (t Topic) Validate() error {
	if t == "" {
		return ErrInvalidTopic
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return ErrInvalidTopic
		}
	}
	return nil
}

// IsPattern returns true if the topic contains wildcards.
func (t Topic) IsPattern() bool {
	for _, seg := range t.Segments() {
		if seg == WildcardSingle || seg == WildcardMulti {
			return true
		}
	}
	return false
}

// Matches reports whether the concrete topic t matches pattern.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(pattern.Segments(), t.Segments())
}

func matchSegments(pattern, topic []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case WildcardMulti:
			rest := pattern[1:]
			for i := 0; i <= len(topic); i++ {
				if matchSegments(rest, topic[i:]) {
					return true
				}
			}
			return false
		case WildcardSingle:
			if len(topic) == 0 {
				return false
			}
		default:
			if len(topic) == 0 || topic[0] != pattern[0] {
				return false
			}
		}
		pattern, topic = pattern[1:], topic[1:]
	}
	return len(topic) == 0
}
