package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{``, `""`},
		{`foo`, `"foo"`},
		{`C:\inc`, `"C:\inc"`},
		{`C:\foo\`, `"C:\foo\\"`},
		{`C:\\foo\\`, `"C:\\foo\\\\"`},
		{`path with spaces\`, `"path with spaces\\"`},
		{`\`, `"\\"`},
		{`FOO=1`, `"FOO=1"`},
	}

	for _, test := range tests {
		result := Quote(test.input)
		assert.Equal(t, test.expected, result, "Quote(%q)", test.input)
	}
}

func trailingBackslashes(s string) int {
	return len(s) - len(strings.TrimRight(s, `\`))
}

// unquote reverses Quote for strings without embedded quotes.
func unquote(q string) string {
	inner := q[1 : len(q)-1]
	n := trailingBackslashes(inner)
	return inner[:len(inner)-n/2]
}

func TestQuote_RoundTrip(t *testing.T) {
	inputs := []string{``, `a`, `a\`, `a\\`, `a\\\`, `\\\\`, `C:\Program Files\Windows Kits\10\Include\`, `x\y`}

	for _, in := range inputs {
		q := Quote(in)

		assert.True(t, strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`), "Quote(%q) = %s", in, q)
		// the closing quote is preceded by an even number of backslashes
		assert.Equal(t, 0, trailingBackslashes(q[:len(q)-1])%2, "Quote(%q) = %s", in, q)
		assert.Equal(t, in, unquote(q))
		assert.Equal(t, trailingBackslashes(in), trailingBackslashes(unquote(q)))
	}
}

func TestFlag(t *testing.T) {
	assert.Equal(t, `"/IC:\inc"`, Flag("/I", `C:\inc`))
	assert.Equal(t, `"/external:IC:\sdk\\"`, Flag("/external:I", `C:\sdk\`))
	assert.Equal(t, `"/DFOO=1"`, Flag("/D", "FOO=1"))
}
