package sqltools

import (
	"context"
	"database/sql"
)

// DB is the handle the tools run against. *oracle.DB satisfies it, as does a
// plain *sql.DB.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Conn(ctx context.Context) (*sql.Conn, error)
}

// observer is implemented by handles that watch session errors for lost
// connections, such as *oracle.DB.
type observer interface {
	Observe(ctx context.Context, err error)
}

// observe hands err from a pinned session back to db.
func observe(ctx context.Context, db DB, err error) {
	if o, ok := db.(observer); ok && err != nil {
		o.Observe(ctx, err)
	}
}
