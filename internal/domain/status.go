package domain

import "strings"

// EventType names a recorded user action.
type EventType string

const (
	EventUpload EventType = "upload"
	EventFilter EventType = "filter"
	EventExport EventType = "export"
	EventImport EventType = "import"
)

var eventTypeLabels = map[EventType]string{
	EventUpload: "File uploaded",
	EventFilter: "Products filtered",
	EventExport: "Data exported",
	EventImport: "Drive file imported",
}

// EventTypeLabel returns a human-readable label for an event type.
func EventTypeLabel(t EventType) string {
	if label, ok := eventTypeLabels[t]; ok {
		return label
	}

	return "Other"
}

// ParseEventType returns the event type for a given name (case-insensitive).
func ParseEventType(name string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(name)))
	_, ok := eventTypeLabels[t]

	return t, ok
}
