package gorm

import (
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/formbench/formbench/internal/config"
)

func init() {
	RegisterDialector("postgres", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(cfg.DSN), nil
	})
	RegisterDialector("mysql", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(cfg.DSN), nil
	})
	RegisterDialector("sqlite", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return sqlite.Open(cfg.DSN), nil
	})
}
