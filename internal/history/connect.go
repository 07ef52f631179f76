package history

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weberkan/raywatch/internal/config"
)

// DSN builds a MySQL DSN for the history database.
func DSN(host string, port int, database string) string {
	return fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=true", host, port, database)
}

// Open connects to the configured history database and migrates the
// schema. A driver of "off" yields a nil *gorm.DB and no error.
func Open(cfg config.History) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case "off":
		return nil, nil
	case "mysql":
		dial = mysql.Open(DSN(cfg.Host, cfg.Port, cfg.Database))
	case "sqlite", "":
		dial = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: connect (%s): %w", cfg.Driver, err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("history: auto-migrate: %w", err)
	}
	return db, nil
}
