package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contactbook_backend/pkg/logger"
)

var DB *gorm.DB

// Open connects to Postgres with the pool limits used across the service.
func Open(dsn string) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}

	gormConfig := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Error),
		PrepareStmt: false,
	}

	db, err := gorm.Open(postgres.New(pgConfig), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// InitDB opens the shared connection or exits.
func InitDB(dsn string, log *logger.Logger) *gorm.DB {
	db, err := Open(dsn)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	DB = db
	log.Info("Database connected")
	return DB
}

func MigrateDatabase(db *gorm.DB, log *logger.Logger, models ...interface{}) error {
	for _, model := range models {
		if !db.Migrator().HasTable(model) {
			if err := db.Migrator().CreateTable(model); err != nil {
				return fmt.Errorf("create table for %T: %w", model, err)
			}
			log.Info("Created table", "model", fmt.Sprintf("%T", model))
			continue
		}
		if err := db.Migrator().AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
		log.Debug("Updated table", "model", fmt.Sprintf("%T", model))
	}
	return nil
}
