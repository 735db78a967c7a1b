package database

import (
	"fmt"
	"strings"

	"github.com/zkemail/paytox/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfigJson struct {
	Driver           string `json:"driver"`
	ConnectionString string `json:"connection_string"`
	MigrateDatabase  *bool  `json:"migrate_database"`
}

type DatabaseConfig struct {
	Driver           string
	ConnectionString string
	MigrateDatabase  bool
}

func (d DatabaseConfigJson) ConvertToDomain() DatabaseConfig {
	cfg := DatabaseConfig{
		Driver:           strings.ToLower(d.Driver),
		ConnectionString: d.ConnectionString,
		MigrateDatabase:  true,
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSqlite
	}
	if cfg.ConnectionString == "" && cfg.Driver == DriverSqlite {
		cfg.ConnectionString = "paytox.db"
	}
	if d.MigrateDatabase != nil {
		cfg.MigrateDatabase = *d.MigrateDatabase
	}
	return cfg
}

func dialector(cfg DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSqlite:
		return sqlite.Open(cfg.ConnectionString), nil
	case DriverPostgres:
		return postgres.Open(cfg.ConnectionString), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ConnectToDatabase opens the configured database and, when enabled, migrates
// the given models.
func ConnectToDatabase(cfg DatabaseConfig, l *logger.Logger, models ...any) (*gorm.DB, error) {
	l = logger.OrDefault(l)
	l.Infof("Establishing connection to %s database...", cfg.Driver)

	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("cannot establish database connection: %w", err)
	}
	l.Info("Database connection established successfully.")

	if cfg.MigrateDatabase {
		if err := RunMigrations(db, l, models...); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func RunMigrations(db *gorm.DB, l *logger.Logger, models ...any) error {
	l = logger.OrDefault(l)
	l.Info("Running migrations for tables... ")
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrating database failed: %w", err)
	}
	l.Info("All tables created (or already exist).")
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
