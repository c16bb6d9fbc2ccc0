package testutil

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"contactbook_backend/internal/model"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
)

// DB returns a migrated Postgres connection or skips the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}
		dbErr = db.AutoMigrate(model.All()...)
	})

	if errors.Is(dbErr, errMissingDSN) {
		if postgresRequired() {
			tb.Fatal("TEST_POSTGRES_REQUIRED is set but TEST_POSTGRES_DSN is empty")
		}
		tb.Skip("set TEST_POSTGRES_DSN to run integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

// postgresRequired reports whether CI demands the integration tests run
// instead of skipping.
func postgresRequired() bool {
	v, _ := strconv.ParseBool(os.Getenv("TEST_POSTGRES_REQUIRED"))
	return v
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// DryRun returns a Postgres-dialect session that renders SQL without a server.
func DryRun(tb testing.TB) *gorm.DB {
	tb.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "host=127.0.0.1 user=test dbname=test sslmode=disable",
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open dry-run db: %v", err)
	}
	return conn
}

// CreateUser inserts a user with a unique email.
func CreateUser(tb testing.TB, db *gorm.DB, name string) model.User {
	tb.Helper()
	user := model.User{
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()),
		Password: "x",
		Name:     name,
	}
	if err := db.Create(&user).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return user
}
