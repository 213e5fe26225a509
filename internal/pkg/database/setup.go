package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

func SetupDatabase() {
	var err error
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	logLevel := gormlogger.Warn
	if env.IsDev() {
		logLevel = gormlogger.Info
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,   // data source name
			DefaultStringSize:         256,   // default size for string fields
			DisableDatetimePrecision:  false, // trial windows compare sub-second timestamps
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), &gorm.Config{
			Logger:  gormlogger.Default.LogMode(logLevel),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err == nil {
			if err = Migrate(DB); err != nil {
				log.Error().Err(err).Msg("AutoMigrate failed")
				panic(err)
			}
			return
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).Msg("Failed to connect to database")
		if i < maxRetries-1 {
			log.Info().Dur("delay", retryDelay).Msg("Retrying database connection")
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Migrate creates or updates every table the application owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ProviderAccount{},
		&models.TrialUsage{},
		&models.CreditBalance{},
		&models.CreditTransaction{},
		&models.BillingCustomer{},
		&models.BillingWebhookEvent{},
		&models.ToolUsageDaily{},
	)
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared handle; tests use it to inject an in-memory database.
func SetDB(db *gorm.DB) {
	DB = db
}
