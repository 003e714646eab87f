// Package db provides a persistence Session over a relational database that
// stores Go struct types as tables.
//
// A Session holds one default connection for its lifetime. Queries created
// with Query run on it, inside the default transaction if one has been started
// with Begin. Queries created with QueryTransactional each take their own
// connection from the pool and run inside their own transaction, returning the
// connection to the pool when committed or rolled back.
//
// Every value that crosses the storage boundary is converted by the dbconv
// Converter that was resolved for its field type when the table description
// was built.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/dekarrin/tabula"
	"github.com/dekarrin/tabula/config"
	"github.com/dekarrin/tabula/dbconv"
	"github.com/dekarrin/tabula/internal/logging"
	"github.com/dekarrin/tabula/schema"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// Options are the optional collaborators of a Session. The zero value is
// usable.
type Options struct {
	// Logger receives messages about the Session. If nil, nothing is logged.
	Logger tabula.Logger

	// Resolver is used to find the Converter of each column. If nil, the
	// default dbconv Resolver is used.
	Resolver *dbconv.Resolver

	// Dialect is the flavor of SQL that DDL is generated in. It is ignored by
	// Open, which uses the dialect in the config.
	Dialect schema.Dialect

	// Metrics, if set, records statements, transactions, and connections.
	Metrics *Metrics
}

// executor is satisfied by *sql.Conn and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Session is a connection to a database through which typed queries are
// issued. It must be created with Open or New.
type Session struct {
	db       *sql.DB
	conn     *sql.Conn
	log      tabula.Logger
	resolver *dbconv.Resolver
	dialect  schema.Dialect
	metrics  *Metrics

	// tables holds the schema.Table of each model type, keyed by
	// reflect.Type.
	tables sync.Map

	// mu guards tx and closed.
	mu     sync.Mutex
	tx     *sql.Tx
	closed bool
}

// Open opens the database described by cfg and creates a Session on it.
// Defaults are not filled in; call cfg.FillDefaults first if they are wanted.
func Open(ctx context.Context, cfg config.Database, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pool, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, WrapDBError(err, "open "+cfg.DSN)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	opts.Dialect = cfg.Dialect
	s, err := New(ctx, pool, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s.log.Infof("opened %s database %s", cfg.Driver, cfg.DSN)
	return s, nil
}

// New creates a Session on an already opened pool. The Session takes ownership
// of the pool and closes it when it is closed.
func New(ctx context.Context, pool *sql.DB, opts Options) (*Session, error) {
	if pool == nil {
		return nil, fmt.Errorf("nil database pool")
	}

	s := &Session{
		db:       pool,
		log:      opts.Logger,
		resolver: opts.Resolver,
		dialect:  opts.Dialect,
		metrics:  opts.Metrics,
	}
	if s.log == nil {
		s.log = logging.NoOpLogger{}
	}
	if s.resolver == nil {
		s.resolver = dbconv.Default()
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, WrapDBError(err, "open default connection")
	}
	s.conn = conn
	s.metrics.connectionOpened()

	return s, nil
}

// Conn returns the default connection of the Session. It remains owned by the
// Session and must not be closed by the caller.
func (s *Session) Conn() *sql.Conn {
	return s.conn
}

// Dialect returns the SQL dialect that the Session generates DDL in.
func (s *Session) Dialect() schema.Dialect {
	return s.dialect
}

// NewConnection takes a new connection from the pool. It must be given back
// with RecycleConnection once the caller is done with it.
func (s *Session) NewConnection(ctx context.Context) (*sql.Conn, error) {
	if s.isClosed() {
		return nil, tabula.ErrClosed
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, WrapDBError(err, "new connection")
	}
	s.metrics.connectionOpened()
	return conn, nil
}

// RecycleConnection returns a connection obtained from NewConnection to the
// pool.
func (s *Session) RecycleConnection(conn *sql.Conn) error {
	if conn == nil {
		return nil
	}
	if conn == s.conn {
		return fmt.Errorf("the default connection cannot be recycled")
	}

	err := conn.Close()
	s.metrics.connectionClosed()
	if err != nil {
		return WrapDBError(err, "recycle connection")
	}
	return nil
}

// Table returns the description of model type t. Descriptions are built once
// per type and cached for the life of the Session.
func (s *Session) Table(t reflect.Type) (schema.Table, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		if cached, ok := s.tables.Load(t); ok {
			return cached.(schema.Table), nil
		}
	}

	tbl, err := schema.Of(s.resolver, t)
	if err != nil {
		return schema.Table{}, err
	}

	actual, _ := s.tables.LoadOrStore(t, tbl)
	return actual.(schema.Table), nil
}

// CreateTable creates the table for model type t on the default connection if
// it does not already exist.
func (s *Session) CreateTable(ctx context.Context, t reflect.Type) error {
	tbl, err := s.Table(t)
	if err != nil {
		return err
	}

	exec, err := s.defaultExecutor()
	if err != nil {
		return err
	}

	stmt := s.dialect.CreateTableSQL(tbl)
	s.log.Debugf("create table %s", tbl.Name)
	s.log.Tracef("%s", stmt)

	start := timeNow()
	_, err = exec.ExecContext(ctx, stmt)
	s.metrics.RecordStatement(OpCreateTable, start, err)
	if err != nil {
		return WrapDBError(err, "create table "+tbl.Name)
	}
	return nil
}

// CreateTable creates the table for T on the default connection of s if it
// does not already exist.
func CreateTable[T any](ctx context.Context, s *Session) error {
	return s.CreateTable(ctx, reflect.TypeOf((*T)(nil)).Elem())
}

// Begin starts the default transaction. Queries created with Query run inside
// it until Commit or Rollback is called. If the default transaction is already
// started, the returned error matches tabula.ErrTransactionActive.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tabula.ErrClosed
	}
	if s.tx != nil {
		return tabula.ErrTransactionActive
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return WrapDBError(err, "begin transaction")
	}
	s.tx = tx
	s.log.Debug("began default transaction")
	return nil
}

// Commit commits the default transaction. If there is none, the returned
// error matches tabula.ErrNoTransaction.
func (s *Session) Commit() error {
	return s.endDefault("commit", (*sql.Tx).Commit)
}

// Rollback rolls back the default transaction. If there is none, the returned
// error matches tabula.ErrNoTransaction.
func (s *Session) Rollback() error {
	return s.endDefault("rollback", (*sql.Tx).Rollback)
}

func (s *Session) endDefault(outcome string, end func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tabula.ErrClosed
	}
	if s.tx == nil {
		return tabula.ErrNoTransaction
	}

	err := end(s.tx)
	s.tx = nil
	s.metrics.RecordTransaction(outcome)
	if err != nil {
		return WrapDBError(err, outcome+" transaction")
	}
	s.log.Debugf("%s of default transaction", outcome)
	return nil
}

// InTransaction returns whether the default transaction is started.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Close ends the Session. A default transaction that is still open is rolled
// back, the default connection is released, and the pool is closed.
// Connections obtained from NewConnection that have not been recycled are
// closed along with the pool. Calling Close again returns an error that
// matches tabula.ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tabula.ErrClosed
	}
	s.closed = true

	if s.tx != nil {
		s.log.Warn("rolling back default transaction left open at close")
		if err := s.tx.Rollback(); err != nil {
			s.log.Warnf("rollback at close: %v", err)
		}
		s.metrics.RecordTransaction("rollback")
		s.tx = nil
	}

	var err error
	if connErr := s.conn.Close(); connErr != nil {
		err = WrapDBError(connErr, "close default connection")
	}
	s.metrics.connectionClosed()

	if dbErr := s.db.Close(); dbErr != nil {
		if err != nil {
			s.log.Warnf("close default connection: %v", err)
		}
		err = WrapDBError(dbErr, "close database")
	}

	s.log.Info("session closed")
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// defaultExecutor returns what queries on the default connection run on: the
// default transaction if one is started, otherwise the connection itself.
func (s *Session) defaultExecutor() (executor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, tabula.ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.conn, nil
}
