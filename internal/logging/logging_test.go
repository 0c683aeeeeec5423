package logging

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log, err := New("debug", format)
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		if !log.Core().Enabled(-1) {
			t.Fatalf("format %q: debug should be enabled", format)
		}
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("want error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("want error for unknown format")
	}
}
