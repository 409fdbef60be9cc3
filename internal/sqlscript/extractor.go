package sqlscript

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"db-sync/internal/dialect"
	"db-sync/internal/schema"
)

// UnsupportedDDLError reports CREATE TABLE syntax outside the subset the
// extractor understands. The affected table or column is still reported by
// name so it is never mistaken for an obsolete table.
type UnsupportedDDLError struct {
	Table     string
	Construct string
}

func (e *UnsupportedDDLError) Error() string {
	return fmt.Sprintf("unsupported DDL construct in table %s: %s", e.Table, e.Construct)
}

var reCreateTablePrefix = regexp.MustCompile(`(?i)^CREATE\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?`)

var constraintKeywords = map[string]bool{
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"KEY":        true,
	"INDEX":      true,
	"CONSTRAINT": true,
	"FULLTEXT":   true,
	"SPATIAL":    true,
	"CHECK":      true,
}

// ExtractTables pulls table definitions out of every CREATE TABLE statement.
// Unsupported constructs do not stop extraction; they are returned joined
// together alongside whatever could be extracted.
func ExtractTables(stmts []Statement) ([]*schema.Table, error) {
	var (
		tables []*schema.Table
		errs   []error
	)
	for _, s := range stmts {
		if s.Category != CategoryCreateTable {
			continue
		}
		t, err := ExtractTable(s.Text)
		if t != nil {
			tables = append(tables, t)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return tables, errors.Join(errs...)
}

// ExtractTable parses one CREATE TABLE statement.
func ExtractTable(text string) (*schema.Table, error) {
	text = stripLeadingComments(text)
	loc := reCreateTablePrefix.FindStringIndex(text)
	if loc == nil {
		return nil, &UnsupportedDDLError{Construct: "not a CREATE TABLE statement"}
	}
	rest := text[loc[1]:]

	name, rest := readIdent(rest)
	if name == "" {
		return nil, &UnsupportedDDLError{Construct: "missing table name"}
	}
	if strings.HasPrefix(strings.TrimSpace(rest), ".") {
		name, rest = readIdent(strings.TrimSpace(rest)[1:])
	}
	table := &schema.Table{Name: name, Kind: schema.KindTable}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") {
		construct := "missing column list"
		if word := strings.ToUpper(firstWord(rest)); word == "LIKE" || word == "AS" || word == "SELECT" {
			construct = "CREATE TABLE ... " + word
		}
		return table, &UnsupportedDDLError{Table: name, Construct: construct}
	}
	end := matchParen(rest, 0)
	if end < 0 {
		return table, &UnsupportedDDLError{Table: name, Construct: "unbalanced column list"}
	}

	var errs []error
	for _, elem := range splitTopLevel(rest[1:end]) {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		tokens := tokenize(elem)
		if constraintKeywords[strings.ToUpper(tokens[0])] {
			table.Dependencies = appendDep(table.Dependencies, references(tokens))
			continue
		}
		col, err := parseColumn(name, elem, tokens)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table.Dependencies = appendDep(table.Dependencies, references(tokens))
		table.Columns = append(table.Columns, col)
	}
	return table, errors.Join(errs...)
}

var reBareIdent = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

func parseColumn(table, elem string, tokens []string) (*schema.Column, error) {
	first := tokens[0]
	if !(strings.HasPrefix(first, "`") || strings.HasPrefix(first, `"`) || reBareIdent.MatchString(first)) || len(tokens) < 2 {
		return nil, &UnsupportedDDLError{Table: table, Construct: elem}
	}

	col := &schema.Column{
		Name:       dialect.UnquoteIdent(first),
		Definition: elem,
		Nullable:   true,
	}
	var extra []string
	for i := 1; i < len(tokens); i++ {
		upper := strings.ToUpper(tokens[i])
		next := ""
		if i+1 < len(tokens) {
			next = strings.ToUpper(tokens[i+1])
		}
		switch {
		case upper == "NOT" && next == "NULL":
			col.Nullable = false
			i++
		case upper == "DEFAULT" && i+1 < len(tokens):
			col.Default = sql.NullString{String: unquoteLiteral(tokens[i+1]), Valid: next != "NULL"}
			i++
		case upper == "PRIMARY" && next == "KEY":
			col.Key = "PRI"
			col.Nullable = false
			i++
		case upper == "UNIQUE" && col.Key == "":
			col.Key = "UNI"
		case upper == "AUTO_INCREMENT":
			extra = append(extra, "auto_increment")
		case upper == "ON" && next == "UPDATE" && i+2 < len(tokens):
			extra = append(extra, "on update "+tokens[i+2])
			i += 2
		}
	}
	col.Extra = strings.Join(extra, " ")
	return col, nil
}

// references returns the table named after REFERENCES, if any.
func references(tokens []string) string {
	for i, tok := range tokens {
		if strings.EqualFold(tok, "REFERENCES") && i+1 < len(tokens) {
			ref := tokens[i+1]
			if p := strings.IndexByte(ref, '('); p > 0 {
				ref = ref[:p]
			}
			if dot := strings.LastIndex(ref, "."); dot >= 0 && !strings.HasSuffix(ref, "`") {
				ref = ref[dot+1:]
			} else if dot := strings.LastIndex(ref, "`.`"); dot >= 0 {
				ref = ref[dot+2:]
			}
			return dialect.UnquoteIdent(ref)
		}
	}
	return ""
}

func appendDep(deps []string, dep string) []string {
	if dep == "" {
		return deps
	}
	for _, d := range deps {
		if strings.EqualFold(d, dep) {
			return deps
		}
	}
	return append(deps, dep)
}

// readIdent reads one quoted or bare identifier from the start of s.
func readIdent(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return "", ""
	}
	if s[0] == '`' || s[0] == '"' {
		j := skipQuoted(s, 0)
		return dialect.UnquoteIdent(s[:j]), s[j:]
	}
	j := 0
	for j < len(s) && (isWordByte(s[j])) {
		j++
	}
	return s[:j], s[j:]
}

func firstWord(s string) string {
	j := 0
	for j < len(s) && isWordByte(s[j]) {
		j++
	}
	return s[:j]
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// matchParen returns the index of the parenthesis closing the one at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// splitTopLevel splits on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
		i++
	}
	return append(parts, s[start:])
}

// tokenize splits a column or constraint clause into words, quoted runs and
// parenthesized groups. A group directly following a word stays attached to it,
// so varchar(100) and decimal(10,2) are single tokens.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	emit := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isSpace(c):
			emit()
			i++
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(s, i)
			cur.WriteString(s[i:j])
			i = j
		case c == '(':
			j := matchParen(s, i)
			if j < 0 {
				j = len(s) - 1
			}
			cur.WriteString(s[i : j+1])
			i = j + 1
		default:
			cur.WriteByte(c)
			i++
		}
	}
	emit()
	return tokens
}

func unquoteLiteral(tok string) string {
	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		inner := tok[1 : len(tok)-1]
		inner = strings.ReplaceAll(inner, "''", "'")
		return strings.ReplaceAll(inner, `\'`, "'")
	}
	return tok
}
