// ABOUTME: Tests for version constants
// ABOUTME: Checks the identity strings sent in client/hello
package version

import (
	"regexp"
	"testing"
)

func TestIdentityStrings(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Fatal("must not be empty")
			}
			if len(tt.value) > 64 {
				t.Errorf("%q is too long for a device info field", tt.value)
			}
		})
	}
}

func TestVersionIsSemver(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(Version) {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}
