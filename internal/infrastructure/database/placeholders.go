package database

import (
	"strconv"
)

// parameterNames scans sql for bind parameters and returns one entry per
// parameter slot, indexed from zero. Anonymous slots ("?" and "?NNN") have
// an empty name; named slots (":a", "@a", "$a") carry the name without its
// prefix.
//
// Numbering follows the engine: "?" takes the slot after the largest seen
// so far, "?NNN" takes slot NNN, and a repeated name reuses its first slot.
// Quoted strings, quoted identifiers and comments are skipped.
func parameterNames(sql string) []string {
	var (
		names   []string
		seen    = make(map[string]bool)
		highest int
	)

	assign := func(slot int, name string) {
		for len(names) < slot {
			names = append(names, "")
		}
		if name != "" {
			names[slot-1] = name
		}
		if slot > highest {
			highest = slot
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
		case c == '[':
			i = skipQuoted(sql, i, ']')
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := indexFrom(sql, i+2, "*/")
			if end < 0 {
				return names
			}
			i = end + 1
		case c == '?':
			j := i + 1
			for j < len(sql) && isDigit(sql[j]) {
				j++
			}
			if j > i+1 {
				n, err := strconv.Atoi(sql[i+1 : j])
				if err == nil && n > 0 {
					assign(n, "")
				}
			} else {
				assign(highest+1, "")
			}
			i = j - 1
		case c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(sql) && isIdentByte(sql[j]) {
				j++
			}
			if j == i+1 {
				continue
			}
			name := sql[i+1 : j]
			key := string(c) + name
			if !seen[key] {
				seen[key] = true
				assign(highest+1, name)
			}
			i = j - 1
		}
	}
	return names
}

// skipQuoted returns the index of the closing quote matching the one at
// start. Doubled quotes inside the literal are escapes.
func skipQuoted(sql string, start int, closing byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != closing {
			continue
		}
		if closing != ']' && i+1 < len(sql) && sql[i+1] == closing {
			i++
			continue
		}
		return i
	}
	return len(sql)
}

func indexFrom(s string, from int, substr string) int {
	for i := from; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// hasTrailingStatement reports whether sql holds anything other than
// whitespace, comments and semicolons after its first top-level ";".
// Semicolons inside literals, quoted identifiers and comments do not
// end a statement.
func hasTrailingStatement(sql string) bool {
	ended := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := indexFrom(sql, i+2, "*/")
			if end < 0 {
				return false
			}
			i = end + 1
			continue
		case c == ';':
			ended = true
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			continue
		}
		if ended {
			return true
		}
		switch c {
		case '\'', '"', '`':
			i = skipQuoted(sql, i, c)
		case '[':
			i = skipQuoted(sql, i, ']')
		}
	}
	return false
}
