package dialect

// Dialect abstracts database-specific SQL used by the sync and backup engines.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	GetTablesQuery() string
	GetViewsQuery() string
	GetColumnsQuery() string
	GetForeignKeysQuery() string
	GetDatabaseExistsQuery() string
	ShowCreateQuery(name string, view bool) string
	CountRowsQuery(table string) string
	SelectAllQuery(table string) string

	// Execution Hooks (Session Level)
	DisableForeignKeysQuery() string
	EnableForeignKeysQuery() string

	// Query Generation
	QuoteIdent(name string) string
	InsertQuery(table string, cols []string) string
	TruncateQuery(table string) string
	DropTableQuery(table string) string
	DropViewQuery(view string) string
	AddColumnQuery(table, definition string) string
	CreateDatabaseQuery(name string) string
	Placeholder(index int) string
}
