package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/pkg/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestDatabaseConfigDefaults(t *testing.T) {
	cfg := DatabaseConfigJson{}.ConvertToDomain()
	assert.Equal(t, DriverSqlite, cfg.Driver)
	assert.Equal(t, "paytox.db", cfg.ConnectionString)
	assert.True(t, cfg.MigrateDatabase)

	off := false
	cfg = DatabaseConfigJson{Driver: "Postgres", ConnectionString: "host=db", MigrateDatabase: &off}.ConvertToDomain()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "host=db", cfg.ConnectionString)
	assert.False(t, cfg.MigrateDatabase)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := ConnectToDatabase(DatabaseConfig{Driver: "oracle"}, logger.Nop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSetupTestDBMigrates(t *testing.T) {
	db := SetupTestDB(t, &widget{})

	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	var got widget
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, "a", got.Name)
}
