// Package schema describes how a Go struct type is laid out as a relational
// table and generates the DDL that creates it.
//
// Every exported field of the struct is a column. The column name is taken
// from a `db` struct tag if one is given and is otherwise the field name in
// snake_case. The tag may also carry options after the name:
//
//	type Note struct {
//		ID      uuid.UUID `db:"id,pk"`
//		Slug    string    `db:",unique"`
//		Body    string
//		Scratch string    `db:"-"`
//	}
//
// The Converter for each column is resolved once, when the Table is built.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dekarrin/tabula/dbconv"
)

// TagName is the struct tag key read for column names and options.
const TagName = "db"

// Namer is implemented by model types that choose their own table name.
type Namer interface {
	TableName() string
}

var namerType = reflect.TypeOf((*Namer)(nil)).Elem()

// Column is a single column of a Table.
type Column struct {
	// Name is the name of the column in the database.
	Name string

	// Field is the name of the struct field the column is read from.
	Field string

	// Index is the index of the field within the struct, suitable for use
	// with reflect.Value.Field.
	Index int

	// Converter changes values of the field to and from their storage
	// representation.
	Converter dbconv.Converter

	PrimaryKey bool
	Unique     bool
}

// StorageType returns the storage type of the column's Converter.
func (col Column) StorageType() dbconv.StorageType {
	return col.Converter.StorageType()
}

// Table is the description of a struct type as a database table.
type Table struct {
	// Name is the name of the table.
	Name string

	// Type is the struct type that rows of the table are read into.
	Type reflect.Type

	// Columns are in the order that their fields are declared in.
	Columns []Column
}

// Of builds the Table for t, which must be a struct type or a pointer to one.
// Each column's Converter is resolved with r; if r is nil, the default
// Resolver is used. If any field's type cannot be resolved, the returned error
// names the field and wraps the error from the Resolver.
func Of(r *dbconv.Resolver, t reflect.Type) (Table, error) {
	if r == nil {
		r = dbconv.Default()
	}
	if t == nil {
		return Table{}, fmt.Errorf("nil type")
	}

	modelType := t
	if modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return Table{}, fmt.Errorf("%v is not a struct type", t)
	}

	tbl := Table{
		Name: tableName(modelType),
		Type: modelType,
	}

	seen := map[string]string{}
	for i := 0; i < modelType.NumField(); i++ {
		f := modelType.Field(i)
		if !f.IsExported() {
			continue
		}

		tag, hasTag := f.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}

		col := Column{
			Field: f.Name,
			Index: i,
		}

		var opts []string
		if hasTag {
			parts := strings.Split(tag, ",")
			col.Name = strings.TrimSpace(parts[0])
			opts = parts[1:]
		}
		if col.Name == "" {
			col.Name = SnakeCase(f.Name)
		}

		for _, opt := range opts {
			switch strings.ToLower(strings.TrimSpace(opt)) {
			case "pk", "primarykey", "primary_key":
				col.PrimaryKey = true
			case "unique":
				col.Unique = true
			case "":
				// allow trailing commas
			default:
				return Table{}, fmt.Errorf("field %s: unknown %s tag option %q", f.Name, TagName, opt)
			}
		}

		if prevField, dup := seen[col.Name]; dup {
			return Table{}, fmt.Errorf("field %s: column name %q is already used by field %s", f.Name, col.Name, prevField)
		}
		seen[col.Name] = f.Name

		conv, err := r.Resolve(f.Type)
		if err != nil {
			return Table{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		col.Converter = conv

		tbl.Columns = append(tbl.Columns, col)
	}

	if len(tbl.Columns) < 1 {
		return Table{}, fmt.Errorf("%v has no exported fields to store", modelType)
	}

	return tbl, nil
}

// Column returns the column with the given name.
func (tbl Table) Column(name string) (Column, bool) {
	for _, col := range tbl.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the columns that make up the primary key of the table.
// The returned slice is empty if there is no primary key.
func (tbl Table) PrimaryKey() []Column {
	var pk []Column
	for _, col := range tbl.Columns {
		if col.PrimaryKey {
			pk = append(pk, col)
		}
	}
	return pk
}

// Names returns the names of all columns in order.
func (tbl Table) Names() []string {
	names := make([]string, len(tbl.Columns))
	for i := range tbl.Columns {
		names[i] = tbl.Columns[i].Name
	}
	return names
}

func tableName(t reflect.Type) string {
	if t.Implements(namerType) {
		return reflect.Zero(t).Interface().(Namer).TableName()
	}
	return SnakeCase(t.Name())
}

// SnakeCase converts a Go identifier such as "LastLoginTime" or "UserID" to
// snake_case ("last_login_time", "user_id").
func SnakeCase(s string) string {
	runes := []rune(s)

	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					sb.WriteRune('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
