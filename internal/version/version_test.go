package version

import (
	"strings"
	"testing"
)

func TestInfoAndAccessorsAgree(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("build info must not be empty: %q %q %q", v, c, d)
	}

	if got := GetVersion(); got != v {
		t.Errorf("GetVersion (%s) should match Info version (%s)", got, v)
	}
	if got := GetCommit(); got != c {
		t.Errorf("GetCommit (%s) should match Info commit (%s)", got, c)
	}
	if got := GetDate(); got != d {
		t.Errorf("GetDate (%s) should match Info date (%s)", got, d)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String should contain %q, got %q", part, s)
		}
	}
}
