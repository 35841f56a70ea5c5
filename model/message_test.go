package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name string
		hour int
		min  int
		want string
	}{
		{name: "midnight", hour: 0, min: 5, want: "오전 12:05"},
		{name: "morning", hour: 9, min: 59, want: "오전 9:59"},
		{name: "noon", hour: 12, min: 40, want: "오후 12:40"},
		{name: "evening", hour: 18, min: 1, want: "오후 6:01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := time.Date(2025, 12, 29, tt.hour, tt.min, 0, 0, time.UTC)
			assert.Equal(t, tt.want, FormatTime(ts))
		})
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025. 03. 07.", FormatDate(ts))
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "메시지", TypeMessage.Label())
	assert.Equal(t, "시스템", TypeSystem.Label())
	assert.Equal(t, "이미지", TypeImage.Label())
	assert.Equal(t, "동영상", TypeVideo.Label())
	assert.Equal(t, "sticker", Type("sticker").Label())
}

func TestPlainContent(t *testing.T) {
	msg := Message{Content: ImageIconMarker + "사진 3장"}
	assert.Equal(t, "사진 3장", msg.PlainContent())
}
