package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database variables
var (
	Db   *gorm.DB    // GORM database instance
	Path = dataPath() // Default database path
)

const dbFileName = "collabflow.db"

// dataPath resolves the directory holding the local database.
// COLLABFLOW_HOME wins over XDG_DATA_HOME, which wins over the home directory.
func dataPath() string {
	if dir := os.Getenv("COLLABFLOW_HOME"); dir != "" {
		return filepath.Join(dir, dbFileName)
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "collabflow", dbFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".collabflow", dbFileName)
	}
	return filepath.Join(home, ".collabflow", dbFileName)
}

// ConfigurePath re-resolves Path from the environment.
func ConfigurePath() error {
	Path = dataPath()
	if Path == "" {
		return fmt.Errorf("could not resolve a database path")
	}
	return nil
}

// InitDB initializes the database and creates the tables if they don't exist.
// It returns an error if any step in the initialization process fails.
func InitDB() error {
	if err := createDBDirectory(); err != nil {
		return err
	}

	if err := openDatabase(); err != nil {
		return err
	}

	if err := migrateTables(Db); err != nil {
		return err
	}

	// Configure the GORM logger
	configureLogger()

	log.Info().Str("path", Path).Msg("Database initialized successfully")
	return nil
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB { return Db }

// createDBDirectory checks if the database path exists and creates it if it doesn't.
func createDBDirectory() error {
	if _, err := os.Stat(filepath.Dir(Path)); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(Path), 0o750); err != nil {
			log.Error().Err(err).Msg("Failed to create database directory")
			return err
		}
	}
	return nil
}

// openDatabase opens the database connection.
func openDatabase() error {
	var err error
	Db, err = gorm.Open(sqlite.Open(Path), &gorm.Config{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return err
	}
	return nil
}

// Migrate creates the session and cache tables on the given handle.
// Tests use it to prepare in-memory databases.
func Migrate(gdb *gorm.DB) error {
	return migrateTables(gdb)
}

func migrateTables(gdb *gorm.DB) error {
	for _, model := range []any{&Token{}, &TeamRecord{}, &MemberRecord{}} {
		if err := gdb.AutoMigrate(model); err != nil {
			log.Error().Err(err).Msg("Failed to auto-migrate database")
			return err
		}
	}
	return nil
}

// configureLogger silences GORM unless debug logging is enabled.
func configureLogger() {
	if zerolog.GlobalLevel() == zerolog.Disabled {
		Db.Logger = Db.Logger.LogMode(logger.Silent)
	} else {
		Db.Logger = Db.Logger.LogMode(logger.Info)
	}
}

// CloseDB closes the database connection.
func CloseDB() error {
	if Db == nil {
		return nil
	}
	sqlDB, err := Db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
