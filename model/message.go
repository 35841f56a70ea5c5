package model

import (
	"fmt"
	"strings"
	"time"
)

// ImageIconMarker stands in for a photo glyph inside message content. Only an
// interactive preview renders it; every exported format strips it.
const ImageIconMarker = "__IMAGE_ICON__"

// VideoGlyph is appended to video placeholder content.
const VideoGlyph = "🎞"

// Type classifies a message record. It is derived from the content shape once,
// when the record is produced.
type Type string

const (
	TypeMessage Type = "message"
	TypeSystem  Type = "system"
	TypeImage   Type = "image"
	TypeVideo   Type = "video"
)

var typeLabels = map[Type]string{
	TypeMessage: "메시지",
	TypeSystem:  "시스템",
	TypeImage:   "이미지",
	TypeVideo:   "동영상",
}

// Label returns the localized tag shown in type columns.
func (t Type) Label() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Message represents a single chat event recovered from a transcript export.
// Timestamps are wall-clock values without a zone and are stored in UTC.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
}

// PlainContent returns the content with inline icon markers removed.
func (m Message) PlainContent() string {
	return StripMarkers(m.Content)
}

// StripMarkers removes every inline icon marker from s.
func StripMarkers(s string) string {
	return strings.ReplaceAll(s, ImageIconMarker, "")
}

// FormatDate renders a timestamp as "2025. 12. 30.".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d. %02d. %02d.", t.Year(), int(t.Month()), t.Day())
}

// FormatTime renders a timestamp as "오후 6:01".
func FormatTime(t time.Time) string {
	hour := t.Hour()
	marker := "오전"
	if hour >= 12 {
		marker = "오후"
	}
	hour12 := hour
	switch {
	case hour == 0:
		hour12 = 12
	case hour > 12:
		hour12 = hour - 12
	}
	return fmt.Sprintf("%s %d:%02d", marker, hour12, t.Minute())
}

// WallClock drops the zone of t while keeping its calendar and clock fields.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
