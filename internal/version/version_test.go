package version

import "testing"

func TestGet(t *testing.T) {
	if got := Get(); got != "0.1.0" {
		t.Errorf("Get() = %q, want %q", got, "0.1.0")
	}
}

func TestString(t *testing.T) {
	orig := Commit
	defer func() { Commit = orig }()

	tests := []struct {
		commit string
		want   string
	}{
		{"", "0.1.0"},
		{"abc", "0.1.0 (abc)"},
		{"0123456789abcdef", "0.1.0 (0123456)"},
	}
	for _, tt := range tests {
		Commit = tt.commit
		if got := String(); got != tt.want {
			t.Errorf("String() with commit %q = %q, want %q", tt.commit, got, tt.want)
		}
	}
}
