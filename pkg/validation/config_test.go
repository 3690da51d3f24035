package validation

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidatorCollectsAllErrors(t *testing.T) {
	cv := NewConfigValidator("SessionConfig")
	cv.Required("NetworkDir", "").
		Positive("JournalThreshold", -1).
		MinDuration("Debounce", 0, 10*time.Millisecond).
		OneOf("DeletePolicy", "explode", "orphan", "cascade")

	if !cv.HasErrors() {
		t.Fatal("expected errors")
	}
	err := cv.Error()
	if err == nil {
		t.Fatal("Error() returned nil with errors collected")
	}
	for _, want := range []string{"NetworkDir", "JournalThreshold", "Debounce", "DeletePolicy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %s: %v", want, err)
		}
	}
}

func TestConfigValidatorPassesValidConfig(t *testing.T) {
	cv := NewConfigValidator("SessionConfig")
	cv.Required("NetworkDir", "/tmp/net").
		Positive("JournalThreshold", 1024).
		MinDuration("Debounce", 100*time.Millisecond, 10*time.Millisecond).
		OneOf("DeletePolicy", "orphan", "orphan", "cascade").
		NonNegative("Retries", 0)

	if cv.HasErrors() {
		t.Fatalf("unexpected errors: %v", cv.Error())
	}
	if cv.Error() != nil {
		t.Fatalf("Error() should be nil: %v", cv.Error())
	}
}
