// Package config contains configuration options for opening a persistence
// session and for logging.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dekarrin/tabula"
	"github.com/dekarrin/tabula/internal/logging"
	"github.com/dekarrin/tabula/schema"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultDriver = "sqlite"
	DefaultDSN    = "tabula.db"
)

var validate = validator.New()

// Database contains the options for connecting to a database.
type Database struct {
	// Driver is the name of the database/sql driver to open the database
	// with. It will default to "sqlite" if not set.
	Driver string `validate:"required"`

	// DSN is the data source name passed to the driver. For sqlite this is
	// the path to the database file. It will default to "tabula.db" if not
	// set.
	DSN string `validate:"required"`

	// Dialect is the flavor of SQL used when generating DDL. It defaults to
	// schema.SQLite.
	Dialect schema.Dialect

	// MaxOpenConns is the maximum number of open connections to the database.
	// Zero means unlimited. A session holds one connection for its lifetime,
	// so any limit must be at least 2 to allow transactional queries.
	MaxOpenConns int `validate:"gte=0"`

	// MaxIdleConns is the maximum number of connections kept idle in the pool.
	MaxIdleConns int `validate:"gte=0"`
}

func (db Database) FillDefaults() Database {
	newDB := db

	if newDB.Driver == "" {
		newDB.Driver = DefaultDriver
	}
	if newDB.DSN == "" {
		newDB.DSN = DefaultDSN
	}

	return newDB
}

func (db Database) Validate() error {
	if err := validate.Struct(db); err != nil {
		return translateValidationError(err)
	}

	if db.MaxOpenConns == 1 {
		return fmt.Errorf("max_open_conns: must be 0 (unlimited) or at least 2")
	}
	if db.MaxOpenConns > 0 && db.MaxIdleConns > db.MaxOpenConns {
		return fmt.Errorf("max_idle_conns: must not be greater than max_open_conns")
	}
	if db.Dialect != schema.SQLite && db.Dialect != schema.MySQL {
		return fmt.Errorf("dialect: unknown dialect %v", db.Dialect)
	}

	return nil
}

// Log contains logging options.
type Log struct {
	// Enabled is whether to enable built-in logging statements.
	Enabled bool

	// Provider must be the name of one of the logging providers. If set to
	// None or unset, it will default to tabula.Jellog.
	Provider tabula.LogProvider

	// File to log to. If not set, all logging will be done to stderr and it
	// will display all logging statements. If set, the file will receive all
	// levels of log messages and stderr will show only those of Info level or
	// higher.
	File string
}

// Create creates the Logger that log describes. If logging is not enabled, a
// Logger that discards all messages is returned.
func (log Log) Create() (tabula.Logger, error) {
	if !log.Enabled {
		return logging.NoOpLogger{}, nil
	}
	return logging.New(log.Provider, log.File)
}

func (log Log) FillDefaults() Log {
	newLog := log

	if newLog.Provider == tabula.NoLog {
		newLog.Provider = tabula.Jellog
	}

	return newLog
}

func (log Log) Validate() error {
	if log.Provider == tabula.NoLog {
		return fmt.Errorf("provider: must not be empty")
	}

	return nil
}

// Config is a complete configuration for a tabula session.
type Config struct {
	// Database is the database to open.
	Database Database

	// Log is used to configure the built-in logging system. It can be left
	// blank to disable logging entirely.
	Log Log

	// Format is the format the config was loaded from. It is used by Dump.
	Format tabula.Format
}

// FillDefaults returns a new Config identical to cfg but with unset values
// set to their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	newCFG.Database = newCFG.Database.FillDefaults()
	newCFG.Log = newCFG.Log.FillDefaults()

	return newCFG
}

// Validate returns an error if the Config has invalid field values set. Empty
// and unset values are considered invalid; if defaults are intended to be used,
// call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// translateValidationError converts the first failure reported by the
// validator into an error in the same "field: problem" form as the rest of
// the package.
func translateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) < 1 {
		return err
	}

	fe := verrs[0]
	field := schema.SnakeCase(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: must not be empty", field)
	case "gte":
		return fmt.Errorf("%s: must be at least %s", field, fe.Param())
	default:
		return fmt.Errorf("%s: failed %s check", field, strings.TrimSpace(fe.Tag()+" "+fe.Param()))
	}
}
