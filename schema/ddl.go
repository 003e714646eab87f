package schema

import (
	"fmt"
	"strings"

	"github.com/dekarrin/tabula/dbconv"
)

// keyPrefixLength is the number of leading characters of a text or blob
// column that MySQL indexes when the column is part of a key.
const keyPrefixLength = 255

// Dialect is a flavor of SQL that DDL is generated for.
type Dialect int

const (
	SQLite Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect parses a string containing the name of a Dialect. It is
// case-insensitive.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	default:
		return SQLite, fmt.Errorf("unknown dialect %q; must be one of sqlite or mysql", s)
	}
}

// ColumnType returns the column type used for st.
func (d Dialect) ColumnType(st dbconv.StorageType) string {
	switch st {
	case dbconv.StorageInt32:
		return "INTEGER"
	case dbconv.StorageInt64:
		return "BIGINT"
	case dbconv.StorageFloat32:
		return "FLOAT"
	case dbconv.StorageFloat64:
		return "DOUBLE"
	case dbconv.StorageText:
		if d == MySQL {
			return "MEDIUMTEXT"
		}
		return "TEXT"
	case dbconv.StorageBlob:
		if d == MySQL {
			return "LONGBLOB"
		}
		return "BLOB"
	default:
		panic(fmt.Sprintf("no column type for %v", st))
	}
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// keyRef gives the reference to col used within a PRIMARY KEY or UNIQUE
// clause.
func (d Dialect) keyRef(col Column) string {
	ref := d.Quote(col.Name)
	if d == MySQL && col.StorageType().IsTextOrBlob() {
		ref += fmt.Sprintf("(%d)", keyPrefixLength)
	}
	return ref
}

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for tbl.
// Every column is NOT NULL.
func (d Dialect) CreateTableSQL(tbl Table) string {
	var sb strings.Builder

	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(d.Quote(tbl.Name))
	sb.WriteString(" (\n")

	var lines []string
	for _, col := range tbl.Columns {
		lines = append(lines, fmt.Sprintf("\t%s %s NOT NULL", d.Quote(col.Name), d.ColumnType(col.StorageType())))
	}

	if pk := tbl.PrimaryKey(); len(pk) > 0 {
		refs := make([]string, len(pk))
		for i := range pk {
			refs[i] = d.keyRef(pk[i])
		}
		lines = append(lines, "\tPRIMARY KEY ("+strings.Join(refs, ", ")+")")
	}

	for _, col := range tbl.Columns {
		if col.Unique && !col.PrimaryKey {
			lines = append(lines, "\tUNIQUE ("+d.keyRef(col)+")")
		}
	}

	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n)")

	if d == MySQL {
		sb.WriteString(" CHARACTER SET utf8mb4")
	}
	sb.WriteString(";")

	return sb.String()
}
