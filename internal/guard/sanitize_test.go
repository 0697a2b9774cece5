package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSanitizeSubpath tests normalization of artifact-relative sub-paths.
func TestSanitizeSubpath(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"src/app.ts", "src/app.ts", true},
		{"./src//app.ts", "src/app.ts", true},
		{"src\\win\\style.css", "src/win/style.css", true},
		{"a/../b", "a/b", true}, // ".." segments are dropped, not resolved
		{"a..b/c", "a..b/c", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"../../etc/passwd", "etc/passwd", true},
		{".hidden/file", "", false},
		{"src/app\x00.ts", "", false},
	}
	for _, tc := range cases {
		got, ok := SanitizeSubpath(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}
