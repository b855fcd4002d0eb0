package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// EnsureSchema creates the users table and its unique username index.
// The index backs the insert-if-absent semantics of CreateLocalUser.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := db.NewCreateIndex().
		Model((*User)(nil)).
		Index("users_username_key").
		Unique().
		IfNotExists().
		Column("username").
		Exec(ctx)

	return err
}
