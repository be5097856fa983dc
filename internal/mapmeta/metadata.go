// Package mapmeta parses the metadata header of arena map files. A header
// is a run of "; key = value" lines before the grid; unknown keys are kept
// so tools can round-trip them.
package mapmeta

import (
	"strings"
)

type Metadata struct {
	Name        string
	Author      string
	Description string
	Extra       map[string]string
}

// Split separates the metadata header from the grid body. Header lines
// start with ';'; the first non-header, non-blank line begins the body.
// Malformed header lines (no '=') are treated as comments and skipped.
func Split(content []byte) (Metadata, []string) {
	meta := Metadata{}
	inHeader := true
	var body []string

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")

		if inHeader && strings.HasPrefix(line, ";") {
			meta.apply(line)
			continue
		}
		if line == "" {
			continue
		}
		inHeader = false
		body = append(body, line)
	}

	return meta, body
}

func (m *Metadata) apply(line string) {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, ";"), "=")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "name":
		m.Name = value
	case "author":
		m.Author = value
	case "description":
		m.Description = value
	default:
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key] = value
	}
}

// Render serializes a header back to "; key = value" lines, known keys
// first.
func (m Metadata) Render() string {
	var b strings.Builder
	if m.Name != "" {
		b.WriteString("; name = " + m.Name + "\n")
	}
	if m.Author != "" {
		b.WriteString("; author = " + m.Author + "\n")
	}
	if m.Description != "" {
		b.WriteString("; description = " + m.Description + "\n")
	}
	for key, value := range m.Extra {
		b.WriteString("; " + key + " = " + value + "\n")
	}
	return b.String()
}
