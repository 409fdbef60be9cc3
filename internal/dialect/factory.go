package dialect

// GetDialect returns the Dialect for the server. MariaDB speaks the same catalog
// and DDL surface as MySQL, so one implementation serves both.
func GetDialect() Dialect {
	return &MysqlDialect{}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
