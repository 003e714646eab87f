package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dekarrin/tabula"
	"github.com/dekarrin/tabula/dbconv"
	"github.com/dekarrin/tabula/schema"
)

var timeNow = time.Now

// operators that may be used in Where.
var operators = map[string]bool{
	"=":  true,
	"<>": true,
	"!=": true,
	"<":  true,
	"<=": true,
	">":  true,
	">=": true,
}

type condition struct {
	column string
	op     string
	value  dbconv.Value
}

// TableQuery is a query on the table of model type T. It accumulates
// conditions with Where and WhereEq, which limit the rows that Select,
// SelectUnique, Count, Update and Delete act on. With no conditions they act
// on every row.
//
// Errors from building the query, such as an unknown column or a value that
// cannot be converted, are returned by the next operation that executes it.
//
// A TableQuery is not safe for concurrent use.
type TableQuery[T any] struct {
	s   *Session
	tbl schema.Table

	// tblErr is set if T could not be described as a table.
	tblErr error

	where    []condition
	whereErr error

	// set only on transactional queries.
	conn  *sql.Conn
	tx    *sql.Tx
	ended bool
}

// Query creates a query on the table of T that runs on the default connection
// of s, inside the default transaction if one is started.
func Query[T any](s *Session) *TableQuery[T] {
	q := &TableQuery[T]{s: s}
	q.tbl, q.tblErr = s.Table(reflect.TypeOf((*T)(nil)).Elem())
	return q
}

// QueryTransactional creates a query on the table of T that runs in a new
// transaction on a new connection from the pool of s. Commit or Rollback must
// be called to end the transaction and return the connection to the pool.
func QueryTransactional[T any](ctx context.Context, s *Session) (*TableQuery[T], error) {
	tbl, err := s.Table(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}

	conn, err := s.NewConnection(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		if recycleErr := s.RecycleConnection(conn); recycleErr != nil {
			s.log.Warnf("recycle connection after failed begin: %v", recycleErr)
		}
		return nil, WrapDBError(err, "begin transaction")
	}

	return &TableQuery[T]{s: s, tbl: tbl, conn: conn, tx: tx}, nil
}

// Table returns the description of the table that q acts on.
func (q *TableQuery[T]) Table() schema.Table {
	return q.tbl
}

// IsTransactional returns whether q was created with QueryTransactional.
func (q *TableQuery[T]) IsTransactional() bool {
	return q.tx != nil
}

// Where adds the condition that column compares to v with op, which must be
// one of =, <>, !=, <, <=, > or >=. v is converted with the Converter of the
// column, so it must be of the column's field type.
func (q *TableQuery[T]) Where(column string, op string, v any) *TableQuery[T] {
	if q.whereErr != nil || q.tblErr != nil {
		return q
	}

	if !operators[op] {
		q.whereErr = fmt.Errorf("where %s: unsupported operator %q", column, op)
		return q
	}

	col, ok := q.tbl.Column(column)
	if !ok {
		q.whereErr = fmt.Errorf("where %s: no such column in %s", column, q.tbl.Name)
		return q
	}

	sv, err := col.Converter.Encode(v)
	if err != nil {
		q.whereErr = fmt.Errorf("where %s: %w", column, err)
		return q
	}

	q.where = append(q.where, condition{column: col.Name, op: op, value: sv})
	return q
}

// WhereEq adds the condition that column equals v.
func (q *TableQuery[T]) WhereEq(column string, v any) *TableQuery[T] {
	return q.Where(column, "=", v)
}

// Clear removes all conditions from q, along with any error that adding them
// caused.
func (q *TableQuery[T]) Clear() *TableQuery[T] {
	q.where = nil
	q.whereErr = nil
	return q
}

// Insert inserts v as a new row.
func (q *TableQuery[T]) Insert(ctx context.Context, v T) error {
	exec, err := q.prepare()
	if err != nil {
		return err
	}

	rv, err := q.structValue(v)
	if err != nil {
		return err
	}

	names := make([]string, len(q.tbl.Columns))
	marks := make([]string, len(q.tbl.Columns))
	args := make([]any, len(q.tbl.Columns))
	for i, col := range q.tbl.Columns {
		sv, err := col.Converter.Encode(rv.Field(col.Index).Interface())
		if err != nil {
			return fmt.Errorf("%s: %w", col.Name, err)
		}
		names[i] = q.s.dialect.Quote(col.Name)
		marks[i] = "?"
		args[i] = sv
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", q.s.dialect.Quote(q.tbl.Name), strings.Join(names, ", "), strings.Join(marks, ", "))

	_, err = q.exec(ctx, exec, OpInsert, stmt, args)
	return err
}

// Select returns every row that matches the conditions of q.
func (q *TableQuery[T]) Select(ctx context.Context) ([]T, error) {
	exec, err := q.prepare()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(q.tbl.Columns))
	for i, col := range q.tbl.Columns {
		names[i] = q.s.dialect.Quote(col.Name)
	}

	where, args := q.whereClause()
	stmt := fmt.Sprintf("SELECT %s FROM %s%s;", strings.Join(names, ", "), q.s.dialect.Quote(q.tbl.Name), where)
	q.logStatement(stmt, args)

	start := timeNow()
	all, err := q.selectRows(ctx, exec, stmt, args)
	q.s.metrics.RecordStatement(OpSelect, start, err)
	return all, err
}

func (q *TableQuery[T]) selectRows(ctx context.Context, exec executor, stmt string, args []any) ([]T, error) {
	rows, err := exec.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, WrapDBError(err)
	}
	defer rows.Close()

	var all []T

	raw := make([]any, len(q.tbl.Columns))
	dest := make([]any, len(q.tbl.Columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, WrapDBError(err)
		}

		v, err := q.decodeRow(raw)
		if err != nil {
			return nil, err
		}
		all = append(all, v)
	}

	if err := rows.Err(); err != nil {
		return all, WrapDBError(err)
	}

	return all, nil
}

// SelectUnique returns the one row that matches the conditions of q. If no row
// matches, the returned error matches tabula.ErrNotFound; if more than one
// does, it matches tabula.ErrNotUnique.
func (q *TableQuery[T]) SelectUnique(ctx context.Context) (T, error) {
	var zero T

	all, err := q.Select(ctx)
	if err != nil {
		return zero, err
	}

	switch len(all) {
	case 0:
		return zero, tabula.ErrNotFound
	case 1:
		return all[0], nil
	default:
		return zero, tabula.NewError(fmt.Sprintf("%d rows in %s", len(all), q.tbl.Name), tabula.ErrNotUnique)
	}
}

// Count returns the number of rows that match the conditions of q.
func (q *TableQuery[T]) Count(ctx context.Context) (int64, error) {
	exec, err := q.prepare()
	if err != nil {
		return 0, err
	}

	where, args := q.whereClause()
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s%s;", q.s.dialect.Quote(q.tbl.Name), where)
	q.logStatement(stmt, args)

	start := timeNow()
	count, err := q.count(ctx, exec, stmt, args)
	q.s.metrics.RecordStatement(OpCount, start, err)
	return count, err
}

func (q *TableQuery[T]) count(ctx context.Context, exec executor, stmt string, args []any) (int64, error) {
	rows, err := exec.QueryContext(ctx, stmt, args...)
	if err != nil {
		return 0, WrapDBError(err)
	}
	defer rows.Close()

	var count int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, WrapDBError(err)
		}
		return 0, WrapDBError(sql.ErrNoRows)
	}
	if err := rows.Scan(&count); err != nil {
		return 0, WrapDBError(err)
	}
	return count, nil
}

// Update sets the named columns of every row matching the conditions of q to
// the values in v. If no columns are named, every column that is not part of
// the primary key is set. It returns the number of rows changed.
func (q *TableQuery[T]) Update(ctx context.Context, v T, columns ...string) (int64, error) {
	exec, err := q.prepare()
	if err != nil {
		return 0, err
	}

	rv, err := q.structValue(v)
	if err != nil {
		return 0, err
	}

	var cols []schema.Column
	if len(columns) == 0 {
		for _, col := range q.tbl.Columns {
			if !col.PrimaryKey {
				cols = append(cols, col)
			}
		}
		if len(cols) == 0 {
			return 0, fmt.Errorf("%s has no columns outside of the primary key to update", q.tbl.Name)
		}
	} else {
		for _, name := range columns {
			col, ok := q.tbl.Column(name)
			if !ok {
				return 0, fmt.Errorf("update %s: no such column in %s", name, q.tbl.Name)
			}
			cols = append(cols, col)
		}
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(q.where))
	for i, col := range cols {
		sv, err := col.Converter.Encode(rv.Field(col.Index).Interface())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", col.Name, err)
		}
		sets[i] = q.s.dialect.Quote(col.Name) + " = ?"
		args = append(args, sv)
	}

	where, whereArgs := q.whereClause()
	args = append(args, whereArgs...)
	stmt := fmt.Sprintf("UPDATE %s SET %s%s;", q.s.dialect.Quote(q.tbl.Name), strings.Join(sets, ", "), where)

	return q.exec(ctx, exec, OpUpdate, stmt, args)
}

// Delete removes every row that matches the conditions of q. It returns the
// number of rows removed.
func (q *TableQuery[T]) Delete(ctx context.Context) (int64, error) {
	exec, err := q.prepare()
	if err != nil {
		return 0, err
	}

	where, args := q.whereClause()
	stmt := fmt.Sprintf("DELETE FROM %s%s;", q.s.dialect.Quote(q.tbl.Name), where)

	return q.exec(ctx, exec, OpDelete, stmt, args)
}

// Commit commits the transaction of a query created with QueryTransactional
// and returns its connection to the pool. For any other query, or one that
// has already ended, the returned error matches tabula.ErrNoTransaction.
func (q *TableQuery[T]) Commit() error {
	return q.end("commit", (*sql.Tx).Commit)
}

// Rollback rolls back the transaction of a query created with
// QueryTransactional and returns its connection to the pool. For any other
// query, or one that has already ended, the returned error matches
// tabula.ErrNoTransaction.
func (q *TableQuery[T]) Rollback() error {
	return q.end("rollback", (*sql.Tx).Rollback)
}

func (q *TableQuery[T]) end(outcome string, end func(*sql.Tx) error) error {
	if q.tx == nil {
		return tabula.NewError("query is not transactional", tabula.ErrNoTransaction)
	}
	if q.ended {
		return tabula.NewError("transaction already ended", tabula.ErrNoTransaction)
	}
	q.ended = true

	txErr := end(q.tx)
	q.s.metrics.RecordTransaction(outcome)

	recycleErr := q.s.RecycleConnection(q.conn)

	if txErr != nil {
		if recycleErr != nil {
			q.s.log.Warnf("recycle connection: %v", recycleErr)
		}
		return WrapDBError(txErr, outcome+" transaction")
	}
	return recycleErr
}

// prepare returns the executor for q, or the first error that building q
// caused.
func (q *TableQuery[T]) prepare() (executor, error) {
	if q.tblErr != nil {
		return nil, q.tblErr
	}
	if q.whereErr != nil {
		return nil, q.whereErr
	}

	if q.tx != nil {
		if q.ended {
			return nil, tabula.NewError("transaction already ended", tabula.ErrNoTransaction)
		}
		return q.tx, nil
	}
	return q.s.defaultExecutor()
}

func (q *TableQuery[T]) exec(ctx context.Context, exec executor, op, stmt string, args []any) (int64, error) {
	q.logStatement(stmt, args)

	start := timeNow()
	res, err := exec.ExecContext(ctx, stmt, args...)
	q.s.metrics.RecordStatement(op, start, err)
	if err != nil {
		return 0, WrapDBError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}

func (q *TableQuery[T]) logStatement(stmt string, args []any) {
	q.s.log.Debugf("%s", stmt)
	if len(args) > 0 {
		q.s.log.Tracef("args: %v", args)
	}
}

func (q *TableQuery[T]) whereClause() (string, []any) {
	if len(q.where) == 0 {
		return "", nil
	}

	parts := make([]string, len(q.where))
	args := make([]any, len(q.where))
	for i, cond := range q.where {
		parts[i] = q.s.dialect.Quote(cond.column) + " " + cond.op + " ?"
		args[i] = cond.value
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// structValue returns the struct that v is or points to.
func (q *TableQuery[T]) structValue(v T) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %T", v)
		}
		rv = rv.Elem()
	}
	return rv, nil
}

func (q *TableQuery[T]) decodeRow(raw []any) (T, error) {
	var zero T

	ptr := reflect.New(q.tbl.Type)
	rv := ptr.Elem()

	for i, col := range q.tbl.Columns {
		sv, err := dbconv.ValueOf(raw[i])
		if err != nil {
			return zero, fmt.Errorf("%s: %w", col.Name, err)
		}
		decoded, err := col.Converter.Decode(sv)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", col.Name, err)
		}
		rv.Field(col.Index).Set(reflect.ValueOf(decoded))
	}

	if reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Pointer {
		return ptr.Interface().(T), nil
	}
	return rv.Interface().(T), nil
}
