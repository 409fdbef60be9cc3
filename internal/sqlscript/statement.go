package sqlscript

import (
	"regexp"
	"strings"

	"db-sync/internal/dialect"
)

// Category decides the execution group of a statement.
type Category int

const (
	CategoryOther Category = iota
	CategoryCreateTable
	CategoryDropObject
	CategoryCreateIndex
	CategoryInsert
	CategoryCreateRoutine
	CategoryCreateView
)

func (c Category) String() string {
	switch c {
	case CategoryCreateTable:
		return "create-table"
	case CategoryDropObject:
		return "drop"
	case CategoryCreateIndex:
		return "create-index"
	case CategoryInsert:
		return "insert"
	case CategoryCreateRoutine:
		return "create-routine"
	case CategoryCreateView:
		return "create-view"
	default:
		return "other"
	}
}

// Statement is one executable SQL statement. Args are bound parameters for
// statements built by the engine; parsed statements carry none.
type Statement struct {
	Text     string
	Args     []any
	Category Category
}

// NewStatement categorizes text and attaches bound parameters.
func NewStatement(text string, args ...any) Statement {
	return Statement{Text: text, Args: args, Category: Categorize(text)}
}

const ident = "(`(?:[^`]|``)+`|\"[^\"]+\"|[\\w$]+)(?:\\s*\\.\\s*(`(?:[^`]|``)+`|\"[^\"]+\"|[\\w$]+))?"

var (
	reCreateTable = regexp.MustCompile(`(?i)^CREATE\s+(?:TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	reCreateView  = regexp.MustCompile(`(?i)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:ALGORITHM\s*=\s*\w+\s+)?(?:DEFINER\s*=\s*\S+\s+)?(?:SQL\s+SECURITY\s+\w+\s+)?VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	reInsert      = regexp.MustCompile(`(?i)^(?:INSERT|REPLACE)\s+(?:(?:LOW_PRIORITY|DELAYED|HIGH_PRIORITY|IGNORE)\s+)*(?:INTO\s+)?` + ident)
	reDrop        = regexp.MustCompile(`(?i)^DROP\s+(?:TEMPORARY\s+)?(?:TABLE|VIEW)\s+(?:IF\s+EXISTS\s+)?` + ident)
	reCreateIndex = regexp.MustCompile(`(?i)^CREATE\s+(?:UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?INDEX\b`)
	reAlterIndex  = regexp.MustCompile(`(?i)^ALTER\s+TABLE\s+\S+\s+ADD\s+(?:UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?(?:INDEX|KEY)\b`)
	reRoutine     = regexp.MustCompile(`(?i)^(?:CREATE\s+(?:DEFINER\s*=\s*\S+\s+)?(?:PROCEDURE|FUNCTION|TRIGGER|EVENT)\b|DELIMITER\b)`)
)

// Categorize classifies a statement by its leading keywords.
func Categorize(text string) Category {
	s := stripLeadingComments(text)
	switch {
	case reCreateTable.MatchString(s):
		return CategoryCreateTable
	case reCreateView.MatchString(s):
		return CategoryCreateView
	case reInsert.MatchString(s):
		return CategoryInsert
	case reDrop.MatchString(s):
		return CategoryDropObject
	case reCreateIndex.MatchString(s), reAlterIndex.MatchString(s):
		return CategoryCreateIndex
	case reRoutine.MatchString(s):
		return CategoryCreateRoutine
	default:
		return CategoryOther
	}
}

// ObjectName returns the table or view a CREATE TABLE, CREATE VIEW, INSERT or DROP
// statement targets, without quoting or schema prefix. Other statements yield "".
func ObjectName(text string) string {
	s := stripLeadingComments(text)
	for _, re := range []*regexp.Regexp{reCreateTable, reCreateView, reInsert, reDrop} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if m[2] != "" {
			return dialect.UnquoteIdent(m[2])
		}
		return dialect.UnquoteIdent(m[1])
	}
	return ""
}

// stripLeadingComments drops whitespace and any comments before the first token.
func stripLeadingComments(text string) string {
	s := strings.TrimSpace(text)
	for {
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+1:])
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s[2:], "*/")
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+4:])
		default:
			return s
		}
	}
}

// Group partitions statements by category, preserving order inside each group.
func Group(stmts []Statement) map[Category][]Statement {
	groups := make(map[Category][]Statement)
	for _, s := range stmts {
		groups[s.Category] = append(groups[s.Category], s)
	}
	return groups
}
