package textutil_test

import (
	"testing"

	"transmirror/internal/textutil"
)

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"shows/the_office.s01e01.mkv", "The Office S01e01"},
		{"movies/blade-runner_2049.mp4", "Blade Runner 2049"},
		{"plain", "Plain"},
		{"", "Unknown Media"},
		{"___", "Unknown Media"},
	}
	for _, tc := range cases {
		if got := textutil.DisplayTitle(tc.in); got != tc.want {
			t.Fatalf("DisplayTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
