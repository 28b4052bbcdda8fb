package repository

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// MemoryDSN keeps the database in memory for the life of the process.
const MemoryDSN = "file::memory:?cache=shared"

// OpenSQLite opens dsn through sqliteshim. With debug set every query is
// logged.
func OpenSQLite(dsn string, debug bool) (*bun.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}
