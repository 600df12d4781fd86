// Package chat handles the '&' colour codes used in plugin messages.
package chat

import (
	"strings"
)

// Section is the formatting prefix understood by game clients.
const Section = '§'

const (
	Black       = "&0"
	DarkBlue    = "&1"
	DarkGreen   = "&2"
	DarkAqua    = "&3"
	DarkRed     = "&4"
	DarkPurple  = "&5"
	Gold        = "&6"
	Gray        = "&7"
	DarkGray    = "&8"
	Blue        = "&9"
	Green       = "&a"
	Aqua        = "&b"
	Red         = "&c"
	LightPurple = "&d"
	Yellow      = "&e"
	White       = "&f"

	Bold      = "&l"
	Italic    = "&o"
	Underline = "&n"
	Reset     = "&r"
)

const codes = "0123456789abcdefklmnor"

func isCode(b byte) bool {
	return strings.IndexByte(codes, lower(b)) >= 0
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// Translate replaces every alt character followed by a valid code with the
// section sign. Codes are lowercased; anything else is left untouched.
func Translate(alt byte, s string) string {
	if strings.IndexByte(s, alt) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == alt && i+1 < len(s) && isCode(s[i+1]) {
			b.WriteRune(Section)
			b.WriteByte(lower(s[i+1]))
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Colorize is Translate with '&'.
func Colorize(s string) string {
	return Translate('&', s)
}

// Strip removes section-sign formatting codes.
func Strip(s string) string {
	const sec = string(Section)
	if !strings.Contains(s, sec) {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, sec)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(sec):]
		if s != "" && isCode(s[0]) {
			s = s[1:]
		}
	}
}

var ansi = map[byte]string{
	'0': "\x1b[30m", '1': "\x1b[34m", '2': "\x1b[32m", '3': "\x1b[36m",
	'4': "\x1b[31m", '5': "\x1b[35m", '6': "\x1b[33m", '7': "\x1b[37m",
	'8': "\x1b[90m", '9': "\x1b[94m", 'a': "\x1b[92m", 'b': "\x1b[96m",
	'c': "\x1b[91m", 'd': "\x1b[95m", 'e': "\x1b[93m", 'f': "\x1b[97m",
	'k': "", 'l': "\x1b[1m", 'm': "\x1b[9m", 'n': "\x1b[4m", 'o': "\x1b[3m",
	'r': "\x1b[0m",
}

// ANSI converts section-sign codes to terminal escapes and resets at the end.
func ANSI(s string) string {
	const sec = string(Section)
	if !strings.Contains(s, sec) {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, sec)
		if i < 0 {
			b.WriteString(s)
			b.WriteString("\x1b[0m")
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(sec):]
		if s != "" && isCode(s[0]) {
			b.WriteString(ansi[s[0]])
			s = s[1:]
		}
	}
}
