package commands

import (
	"path/filepath"
	"testing"
)

func TestDefaultRoot_EnvOverride(t *testing.T) {
	t.Setenv("OWL_ROOT", "/srv/owl")

	if got := defaultRoot(); got != "/srv/owl" {
		t.Errorf("Expected /srv/owl, got %s", got)
	}
}

func TestDefaultRoot_Home(t *testing.T) {
	t.Setenv("OWL_ROOT", "")
	t.Setenv("HOME", "/home/tester")

	want := filepath.Join("/home/tester", ".owl")
	if got := defaultRoot(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"short id unchanged", "abc123", "abc123"},
		{"long id truncated", "2f1c73ea-8a4b-4c26-9d30-5b1f6f4c9a01", "2f1c73ea-8a4"},
		{"exactly twelve", "123456789012", "123456789012"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortID(tt.id); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
