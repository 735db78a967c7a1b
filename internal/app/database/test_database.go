package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/zkemail/paytox/pkg/logger"
	"gorm.io/gorm"
)

// SetupTestDB returns a private in-memory sqlite database with models
// migrated. It is closed when the test ends.
func SetupTestDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := ConnectToDatabase(DatabaseConfig{
		Driver:           DriverSqlite,
		ConnectionString: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MigrateDatabase:  true,
	}, logger.Nop(), models...)
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying *sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		if err := Close(db); err != nil {
			t.Errorf("Failed to close database connection: %v", err)
		}
	})
	return db
}
