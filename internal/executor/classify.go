package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
)

// Class is the handling decided for a failed statement.
type Class int

const (
	// Ignorable failures mean the object or row is already there.
	Ignorable Class = iota
	// Tolerable failures are counted as errors; the batch continues.
	Tolerable
	// Syntax failures are tolerated too, but point at a statement the
	// parser split or rebuilt incorrectly.
	Syntax
	// Fatal failures lose the connection or the session; the batch aborts.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Ignorable:
		return "ignorable"
	case Tolerable:
		return "tolerable"
	case Syntax:
		return "syntax"
	default:
		return "fatal"
	}
}

// MySQL server error numbers.
const (
	ErDBCreateExists     = 1007
	ErDupKey             = 1022
	ErAccessDeniedDB     = 1044
	ErAccessDenied       = 1045
	ErTableExists        = 1050
	ErBadTable           = 1051
	ErServerShutdown     = 1053
	ErDupFieldName       = 1060
	ErDupKeyName         = 1061
	ErDupEntry           = 1062
	ErParse              = 1064
	ErMultiplePriKey     = 1068
	ErCantDropFieldOrKey = 1091
	ErNoSuchTable        = 1146
	ErSyntax             = 1149
	ErSPAlreadyExists    = 1304
	ErViewInvalid        = 1356
	ErTrgAlreadyExists   = 1359
	ErNoSuchUser         = 1449
	ErFKDupName          = 1826
	ErConnectionKilled   = 1927
	ErTooManyConnections = 1040
	ErOutOfResources     = 1041
)

// Policy lists the server errors treated as Ignorable.
type Policy struct {
	Ignorable map[uint16]bool
}

// DefaultPolicy skips already-exists and duplicate failures.
func DefaultPolicy() Policy {
	return Policy{Ignorable: map[uint16]bool{
		ErDBCreateExists:   true,
		ErDupKey:           true,
		ErTableExists:      true,
		ErDupFieldName:     true,
		ErDupKeyName:       true,
		ErDupEntry:         true,
		ErMultiplePriKey:   true,
		ErSPAlreadyExists:  true,
		ErTrgAlreadyExists: true,
		ErFKDupName:        true,
	}}
}

// RestorePolicy also tolerates missing dependencies, which a later statement
// of the same backup may still create.
func RestorePolicy() Policy {
	p := DefaultPolicy()
	for _, code := range []uint16{ErBadTable, ErCantDropFieldOrKey, ErNoSuchTable, ErViewInvalid, ErNoSuchUser} {
		p.Ignorable[code] = true
	}
	return p
}

var fatalCodes = map[uint16]bool{
	ErAccessDeniedDB:     true,
	ErAccessDenied:       true,
	ErServerShutdown:     true,
	ErConnectionKilled:   true,
	ErTooManyConnections: true,
	ErOutOfResources:     true,
}

// Classify maps a statement error to its handling class.
func (p Policy) Classify(err error) Class {
	if IsConnectionError(err) {
		return Fatal
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch {
		case fatalCodes[myErr.Number]:
			return Fatal
		case p.Ignorable[myErr.Number]:
			return Ignorable
		case myErr.Number == ErParse || myErr.Number == ErSyntax:
			return Syntax
		}
	}
	return Tolerable
}

// IsConnectionError reports failures of the connection itself rather than of a statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
