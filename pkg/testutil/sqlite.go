package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
)

// NewSQLiteDB opens a private in-memory SQLite database, applies migrations
// and closes it when the test ends. Every test gets its own database.
func NewSQLiteDB(t *testing.T, migrations []string) *database.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	cfg := &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}

	db, err := database.New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), migrations); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return db
}
