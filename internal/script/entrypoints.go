// Package script synthesises executable entry-point shims for installed
// wheels: text shims with a rewritten shebang on Unix-like systems, and
// native launcher stubs with a concatenated Python payload on Windows.
package script

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Kind distinguishes console entry points (attached to a console, exit code
// propagated) from GUI entry points (detached, `...w.exe` on Windows).
type Kind int

const (
	Console Kind = iota
	GUI
)

// EntryPoint is a single parsed entry from entry_points.txt.
type EntryPoint struct {
	Name   string // script name, e.g. "flask"
	Module string // dotted module path, e.g. "flask.cli"
	Attr   string // dotted callable attribute, e.g. "main"
	Kind   Kind
}

// ParseEntryPoints reads an entry_points.txt file and returns every entry in
// its [console_scripts] and [gui_scripts] sections. Other sections are
// ignored. A malformed line within a recognised section is skipped rather
// than failing the whole parse, matching the ecosystem's tolerant behaviour.
func ParseEntryPoints(r io.Reader) ([]EntryPoint, error) {
	var (
		entries []EntryPoint
		kind    Kind
		active  bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			switch line {
			case "[console_scripts]":
				kind, active = Console, true
			case "[gui_scripts]":
				kind, active = GUI, true
			default:
				active = false
			}

			continue
		}

		if !active {
			continue
		}

		ep, ok := parseLine(line, kind)
		if !ok {
			continue
		}

		entries = append(entries, ep)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading entry_points.txt: %w", err)
	}

	return entries, nil
}

// parseLine parses "name = module[.sub]:attr[.sub] [extras]".
func parseLine(line string, kind Kind) (EntryPoint, bool) {
	name, value, ok := strings.Cut(line, "=")
	if !ok {
		return EntryPoint{}, false
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	if idx := strings.IndexByte(value, '['); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}

	module, attr, ok := strings.Cut(value, ":")
	if !ok {
		return EntryPoint{}, false
	}

	module = strings.TrimSpace(module)
	attr = strings.TrimSpace(attr)

	if name == "" || module == "" || attr == "" {
		return EntryPoint{}, false
	}

	return EntryPoint{Name: name, Module: module, Attr: attr, Kind: kind}, true
}
