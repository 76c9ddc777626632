// Package testdb provides an in-memory SQLite database with the ticketing
// schema for repository and service tests.
package testdb

import (
	"context"
	"database/sql"
	"testing"

	"gameday-ticketing/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func New(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketConfig)(nil),
		(*models.TicketOrder)(nil),
		(*models.Ticket)(nil),
		(*models.TicketScan)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })

	return bunDB
}
