package transcript

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Open returns the repo for driver: "memory", "postgres" or "sqlite".
// The returned close func releases the database, if any.
func Open(ctx context.Context, driver, dsn string) (Repo, func() error, error) {
	switch driver {
	case "", "memory":
		return NewMemoryRepo(), func() error { return nil }, nil
	case string(DialectPostgres), string(DialectSQLite):
	default:
		return nil, nil, errors.Errorf("unknown store driver %q", driver)
	}
	if dsn == "" {
		return nil, nil, errors.Errorf("store.dsn is required for %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s open", driver)
	}
	if driver == string(DialectSQLite) {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, errors.Wrapf(err, "%s ping", driver)
	}

	if err := EnsureSchema(ctx, db, Dialect(driver)); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewRepo(db, Dialect(driver)), db.Close, nil
}
