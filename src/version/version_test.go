package version

import "testing"

// TestFlagEmpty fails if version.Flag is not empty. An empty flag marks
// release code.
func TestFlagEmpty(t *testing.T) {
	if len(Flag) > 0 {
		t.Fatalf("Version Flag is not empty: %s", Flag)
	}
}
