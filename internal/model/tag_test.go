package model

import "testing"

func TestTagSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "golang", "golang"},
		{"uppercase lowered", "GoLang", "golang"},
		{"whitespace to hyphen", "web dev", "web-dev"},
		{"whitespace run collapsed", "web   dev", "web-dev"},
		{"leading and trailing trimmed", "  reading list ", "reading-list"},
		{"punctuation stripped", "c++ tips!", "c-tips"},
		{"hyphens preserved", "self-hosted", "self-hosted"},
		{"digits preserved", "http2", "http2"},
		{"unicode stripped", "café", "caf"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TagSlug(tt.in); got != tt.want {
				t.Errorf("TagSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScreenshotStatusValid(t *testing.T) {
	for _, s := range []ScreenshotStatus{ScreenshotPending, ScreenshotProcessing, ScreenshotCompleted, ScreenshotFailed} {
		if !s.Valid() {
			t.Errorf("Valid() = false for %q", s)
		}
	}
	if ScreenshotStatus("done").Valid() {
		t.Error("Valid() = true for unknown status")
	}
}
