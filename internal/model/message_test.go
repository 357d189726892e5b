package model

import "testing"

func TestSeen(t *testing.T) {
	tests := []struct {
		flags string
		want  bool
	}{
		{"", false},
		{`\Seen`, true},
		{`\Answered \Seen`, true},
		{`\Seen \Flagged`, true},
		{`\Answered`, false},
		{`\SeenX`, false},
		{`Seen`, false},
	}
	for _, tt := range tests {
		m := CachedMessage{Flags: tt.flags}
		if got := m.Seen(); got != tt.want {
			t.Errorf("Seen() with flags %q = %v, want %v", tt.flags, got, tt.want)
		}
	}
}
