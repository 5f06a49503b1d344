package logging

import (
	"io"
	"strings"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

var (
	levelTones = map[string]string{
		"DEBUG": ansiGray,
		"INFO":  ansiBlue,
		"WARN":  ansiYellow,
		"ERROR": ansiRed,
	}
	// valueTones colors states and notification reasons by severity.
	valueTones = map[string]string{
		"UP":                ansiGreen,
		"OK":                ansiGreen,
		"RECOVERY":          ansiGreen,
		"DOWN":              ansiRed,
		"CRITICAL":          ansiRed,
		"NORMAL":            ansiRed,
		"WARNING":           ansiYellow,
		"UNKNOWN":           ansiYellow,
		"UNREACHABLE":       ansiYellow,
		"FLAPPINGSTART":     ansiYellow,
		"ACKNOWLEDGEMENT":   ansiCyan,
		"FLAPPINGSTOP":      ansiCyan,
		"FLAPPINGDISABLED":  ansiCyan,
		"DOWNTIMESTART":     ansiCyan,
		"DOWNTIMEEND":       ansiCyan,
		"DOWNTIMECANCELLED": ansiCyan,
		"CUSTOM":            ansiCyan,
	}
	// keyTones colors values of attributes that identify what a line is about.
	keyTones = map[string]string{
		"notifier":    ansiCyan,
		"host":        ansiCyan,
		"command_id":  ansiGray,
		"downtime_id": ansiGray,
		"error":       ansiRed,
	}
)

// colorWriter paints rendered slog text lines for terminals.
type colorWriter struct {
	dst io.Writer
}

// Write colors one line by its level and highlights known attribute values.
// Params: payload is one rendered slog text line.
// Returns: len(payload) on success so callers never see the added escape bytes.
func (w *colorWriter) Write(payload []byte) (int, error) {
	line := string(payload)
	base, ok := levelTones[lineLevel(line)]
	if !ok {
		return w.dst.Write(payload)
	}
	if _, err := io.WriteString(w.dst, base+colorize(line, base)+ansiReset); err != nil {
		return 0, err
	}
	return len(payload), nil
}

func lineLevel(line string) string {
	_, rest, ok := strings.Cut(line, "level=")
	if !ok {
		return ""
	}
	level, _, _ := strings.Cut(rest, " ")
	return strings.TrimSpace(level)
}

// colorize rewrites key=value tokens; quoted values keep their spaces.
func colorize(line, base string) string {
	var out strings.Builder
	out.Grow(len(line) + 32)
	for len(line) > 0 {
		token, rest := nextToken(line)
		out.WriteString(paint(token, base))
		line = rest
	}
	return out.String()
}

// nextToken splits off one space-delimited token, treating a quoted value as one word.
func nextToken(line string) (string, string) {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case ' ', '\n':
			if !quoted {
				return line[:i+1], line[i+1:]
			}
		}
	}
	return line, ""
}

func paint(token, base string) string {
	body := strings.TrimRight(token, " \n")
	tail := token[len(body):]
	key, value, ok := strings.Cut(body, "=")
	if !ok || value == "" || key == "level" {
		return token
	}
	tone, ok := keyTones[key]
	if !ok {
		tone, ok = valueTones[strings.Trim(value, `"`)]
	}
	if !ok {
		return token
	}
	return key + "=" + tone + value + ansiReset + base + tail
}
