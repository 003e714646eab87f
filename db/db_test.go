package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Types and helpers shared by the tests in this package.

type priority int

const (
	low priority = iota
	normal
	high
)

func (p priority) String() string {
	switch p {
	case low:
		return "LOW"
	case normal:
		return "NORMAL"
	case high:
		return "HIGH"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func (priority) Members() []priority {
	return []priority{low, normal, high}
}

type note struct {
	ID       uuid.UUID `db:"id,pk"`
	Title    string    `db:"title,unique"`
	Priority priority
	Pinned   bool
	Score    float64
	Created  time.Time
}

type unstorable struct {
	Tags map[string]bool
}

const (
	noteColumns = `"id", "title", "priority", "pinned", "score", "created"`
	noteSelect  = `SELECT ` + noteColumns + ` FROM "note"`
)

var (
	noteID1 = uuid.MustParse("284968fa-1ec3-4d69-9a89-a6bbe60d2883")
	noteID2 = uuid.MustParse("9c9ca5e9-4305-4bfa-ab0d-a9e08ceb3c7b")

	createdTime = time.Date(2024, 2, 2, 2, 3, 12, 0, time.UTC)
)

func noteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "priority", "pinned", "score", "created"})
}

// newMockSession creates a Session on a sqlmock database that matches SQL
// exactly.
func newMockSession(t *testing.T, opts Options) (*Session, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}

	s, err := New(context.Background(), mockDB, opts)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	return s, mock
}
