package backup

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "INTEGER": true, "BIGINT": true,
	"UNSIGNED TINYINT": true, "UNSIGNED SMALLINT": true, "UNSIGNED MEDIUMINT": true, "UNSIGNED INT": true, "UNSIGNED BIGINT": true,
	"DECIMAL": true, "FLOAT": true, "DOUBLE": true, "YEAR": true,
}

var binaryTypes = map[string]bool{
	"BINARY": true, "VARBINARY": true, "BIT": true, "GEOMETRY": true,
	"TINYBLOB": true, "BLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
}

// EncodeValue renders one scanned value as a SQL literal. dbType is the
// driver's DatabaseTypeName for the column and decides how raw bytes are written.
func EncodeValue(v any, dbType string) string {
	dbType = strings.ToUpper(dbType)
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return encodeBytes(val, dbType)
	case string:
		return encodeBytes([]byte(val), dbType)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return encodeTime(val, dbType)
	default:
		return Quote(fmt.Sprint(val))
	}
}

func encodeBytes(b []byte, dbType string) string {
	switch {
	case numericTypes[dbType]:
		return string(b)
	case binaryTypes[dbType] || !utf8.Valid(b):
		if len(b) == 0 {
			return "''"
		}
		return "X'" + hex.EncodeToString(b) + "'"
	default:
		return Quote(string(b))
	}
}

func encodeTime(t time.Time, dbType string) string {
	if t.IsZero() {
		if dbType == "DATE" {
			return "'0000-00-00'"
		}
		return "'0000-00-00 00:00:00'"
	}
	if dbType == "DATE" {
		return "'" + t.Format("2006-01-02") + "'"
	}
	return "'" + t.Format("2006-01-02 15:04:05.999999") + "'"
}

// Quote escapes s the way MySQL's string-literal parser expects.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\x1a':
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
