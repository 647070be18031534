package utils

import "strings"

// Quote wraps s in double quotes so it reaches the compiler as one argument.
// A trailing run of backslashes is doubled so the closing quote is not
// escaped. Other characters are left as-is.
func Quote(s string) string {
	n := len(s) - len(strings.TrimRight(s, `\`))

	var sb strings.Builder
	sb.Grow(len(s) + n + 2)
	sb.WriteByte('"')
	sb.WriteString(s)
	sb.WriteString(strings.Repeat(`\`, n))
	sb.WriteByte('"')

	return sb.String()
}

// Flag returns the quoted form of a flag immediately followed by its value,
// e.g. Flag("/I", `C:\inc`) is `"/IC:\inc"`.
func Flag(flag, value string) string {
	return Quote(flag + value)
}
