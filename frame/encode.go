package frame

import (
	"strings"

	"github.com/pkg/errors"
)

// Header value escaping per STOMP 1.1 and later. Carriage return, line
// feed, colon and backslash may not appear raw in a header name or value.
var (
	escaper = strings.NewReplacer(
		"\\", "\\\\",
		"\r", "\\r",
		"\n", "\\n",
		":", "\\c",
	)

	unescaper = map[byte]byte{
		'\\': '\\',
		'r':  '\r',
		'n':  '\n',
		'c':  ':',
	}
)

// escapeValue encodes a header name or value for transmission.
func escapeValue(s string) string {
	return escaper.Replace(s)
}

// unescapeValue decodes a header name or value received from the wire.
// An undefined or truncated escape sequence is a protocol error.
func unescapeValue(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			continue
		}

		i++
		if i >= len(s) {
			return "", errors.Errorf("truncated escape sequence in %q", s)
		}

		c, ok := unescaper[s[i]]
		if !ok {
			return "", errors.Errorf("undefined escape sequence \\%c in %q", s[i], s)
		}
		sb.WriteByte(c)
	}

	return sb.String(), nil
}
