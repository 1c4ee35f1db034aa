package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// Flavor returns the sqlbuilder flavor for a driver name. Unknown drivers
// get PostgreSQL.
func Flavor(driver string) sqlbuilder.Flavor {
	if driver == DriverSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}

// SupportsReturning reports whether INSERT ... RETURNING can be used to
// read back generated ids.
func SupportsReturning(driver string) bool {
	return driver == DriverPostgres
}

func NewInsertBuilder(driver string) *sqlbuilder.InsertBuilder {
	return Flavor(driver).NewInsertBuilder()
}

func NewSelectBuilder(driver string) *sqlbuilder.SelectBuilder {
	return Flavor(driver).NewSelectBuilder()
}

func NewDeleteBuilder(driver string) *sqlbuilder.DeleteBuilder {
	return Flavor(driver).NewDeleteBuilder()
}
