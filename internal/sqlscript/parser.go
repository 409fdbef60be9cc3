package sqlscript

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	reKeyword   = regexp.MustCompile(`(?i)\b(CREATE|INSERT|UPDATE|DELETE|ALTER|DROP|SET|START|COMMIT|SELECT)\b`)
	reDelimiter = regexp.MustCompile(`(?i)^[ \t]*DELIMITER[ \t]+(\S+)[ \t]*$`)
)

// ParseFile reads and parses a SQL script.
func ParseFile(path string) ([]Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sql file %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse splits a SQL script into categorized statements.
//
// Comments (--, #, /* */) are stripped; a line whose first non-blank characters
// are -- is a comment even without a following space, so banners like ----- or
// --Users never glue onto the next statement. Elsewhere on a line -- needs a
// following space, as in MySQL. DELIMITER directives change the
// terminator, and terminators inside quoted strings, quoted identifiers or
// comments do not end a statement. Fragments that contain none of the
// recognized keywords are dropped.
func Parse(text string) []Statement {
	var stmts []Statement
	for _, frag := range split(text) {
		if !reKeyword.MatchString(frag) {
			continue
		}
		stmts = append(stmts, NewStatement(frag))
	}
	return stmts
}

func split(text string) []string {
	var (
		frags     []string
		buf       strings.Builder
		delim     = ";"
		lineStart = true
		// lineBlank holds while only whitespace precedes i on the current line.
		lineBlank = true
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			frags = append(frags, s)
		}
		buf.Reset()
	}

	n := len(text)
	for i := 0; i < n; {
		if lineStart {
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = n - i
			}
			if m := reDelimiter.FindStringSubmatch(strings.TrimRight(text[i:i+end], "\r")); m != nil {
				flush()
				delim = m[1]
				i += end
				continue
			}
			lineStart = false
		}

		c := text[i]
		switch {
		case c == '\n':
			buf.WriteByte(c)
			lineStart = true
			lineBlank = true
			i++
		case c == '\'' || c == '"' || c == '`':
			lineBlank = false
			j := skipQuoted(text, i)
			buf.WriteString(text[i:j])
			i = j
		case c == '#' || (c == '-' && strings.HasPrefix(text[i:], "--") && (lineBlank || i+2 == n || isSpace(text[i+2]))):
			// line comment: keep the newline so line structure survives
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 4
			}
			buf.WriteByte(' ')
		case strings.HasPrefix(text[i:], delim):
			flush()
			lineBlank = false
			i += len(delim)
		default:
			if !isSpace(c) {
				lineBlank = false
			}
			buf.WriteByte(c)
			i++
		}
	}
	flush()
	return frags
}

// skipQuoted returns the index just past the quoted run starting at i.
// Backslash escapes apply inside string literals; a doubled quote continues the run.
func skipQuoted(text string, i int) int {
	q := text[i]
	j := i + 1
	for j < len(text) {
		switch text[j] {
		case '\\':
			if q != '`' {
				j += 2
				continue
			}
		case q:
			if j+1 < len(text) && text[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(text)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
