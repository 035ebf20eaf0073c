package store

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Rebind rewrites $N placeholders into the dialect's parameter form.
	Rebind(sql string) string

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// ColumnType maps a schema column type to the database DDL type.
	ColumnType(fieldType string) string

	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool

	// PrimaryKeyDDL returns the column clause for an auto-assigned
	// integer primary key.
	PrimaryKeyDDL(col string) string

	// MapError maps a database error to a well-known sentinel error.
	MapError(err error) error
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}
