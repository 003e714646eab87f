package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dekarrin/tabula"
	"github.com/stretchr/testify/assert"
)

func Test_Insert(t *testing.T) {
	t.Run("converts every column", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})
		ctx := context.Background()

		input := note{
			ID:       noteID1,
			Title:    "groceries",
			Priority: high,
			Pinned:   true,
			Score:    2.5,
			Created:  createdTime,
		}

		mock.
			ExpectExec(`INSERT INTO "note" (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?);`).
			WithArgs(
				AnyUUID{},
				"groceries",
				"HIGH",
				int64(1),
				2.5,
				AnyTime{EqualTo: &createdTime},
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := Query[note](s).Insert(ctx, input)

		assert.NoError(err)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("pointer model", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})
		ctx := context.Background()

		mock.
			ExpectExec(`INSERT INTO "note" (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?);`).
			WithArgs(noteID2.String(), "", "LOW", int64(0), 0.0, AnyTime{}).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := Query[*note](s).Insert(ctx, &note{ID: noteID2})

		assert.NoError(err)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("nil pointer model", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		err := Query[*note](s).Insert(context.Background(), nil)

		assert.Error(err)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("value outside of enum", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		err := Query[note](s).Insert(context.Background(), note{Priority: priority(8)})

		assert.ErrorIs(err, tabula.ErrUnknownVariant)
		assert.Contains(err.Error(), "priority")
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectExec(`INSERT INTO "note" (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?);`).
			WillReturnError(errors.New("disk on fire"))

		err := Query[note](s).Insert(context.Background(), note{})

		assert.ErrorIs(err, tabula.ErrDB)
		assert.Contains(err.Error(), "disk on fire")
		assert.NoError(mock.ExpectationsWereMet())
	})
}

func Test_Select(t *testing.T) {
	t.Run("all rows", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect + `;`).
			WillReturnRows(noteRows().
				AddRow(noteID1.String(), "groceries", "HIGH", int64(1), 2.5, "2024-02-02T02:03:12Z").
				AddRow(noteID2.String(), "laundry", "LOW", int64(0), float64(-1), "2024-02-02T02:03:12Z"),
			)

		actual, err := Query[note](s).Select(context.Background())

		if !assert.NoError(err) {
			return
		}
		assert.Equal([]note{
			{ID: noteID1, Title: "groceries", Priority: high, Pinned: true, Score: 2.5, Created: createdTime},
			{ID: noteID2, Title: "laundry", Priority: low, Pinned: false, Score: -1, Created: createdTime},
		}, actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("where conditions", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect+` WHERE "priority" = ? AND "score" >= ?;`).
			WithArgs("NORMAL", 1.0).
			WillReturnRows(noteRows())

		actual, err := Query[note](s).
			WhereEq("priority", normal).
			Where("score", ">=", 1.0).
			Select(context.Background())

		assert.NoError(err)
		assert.Empty(actual)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("pointer model", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect + `;`).
			WillReturnRows(noteRows().AddRow(noteID1.String(), "x", "LOW", int64(0), 0.0, "2024-02-02T02:03:12Z"))

		actual, err := Query[*note](s).Select(context.Background())

		if !assert.NoError(err) {
			return
		}
		if assert.Len(actual, 1) {
			assert.Equal(&note{ID: noteID1, Title: "x", Created: createdTime}, actual[0])
		}
	})

	t.Run("stored value not in enum", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect + `;`).
			WillReturnRows(noteRows().AddRow(noteID1.String(), "x", "URGENT", int64(0), 0.0, "2024-02-02T02:03:12Z"))

		_, err := Query[note](s).Select(context.Background())

		assert.ErrorIs(err, tabula.ErrUnknownVariant)
		assert.Contains(err.Error(), "priority")
	})

	t.Run("stored NULL", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect + `;`).
			WillReturnRows(noteRows().AddRow(noteID1.String(), nil, "LOW", int64(0), 0.0, "2024-02-02T02:03:12Z"))

		_, err := Query[note](s).Select(context.Background())

		assert.ErrorIs(err, tabula.ErrTypeMismatch)
		assert.Contains(err.Error(), "title")
	})

	t.Run("unparseable stored text", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectQuery(noteSelect + `;`).
			WillReturnRows(noteRows().AddRow("not-a-uuid", "x", "LOW", int64(0), 0.0, "2024-02-02T02:03:12Z"))

		_, err := Query[note](s).Select(context.Background())

		assert.ErrorIs(err, tabula.ErrParse)
		assert.Contains(err.Error(), "id")
	})
}

func Test_SelectUnique(t *testing.T) {
	testCases := []struct {
		name             string
		rows             *sqlmock.Rows
		expect           note
		expectErrToMatch error
	}{
		{
			name:   "one row",
			rows:   noteRows().AddRow(noteID1.String(), "groceries", "NORMAL", int64(0), 0.0, "2024-02-02T02:03:12Z"),
			expect: note{ID: noteID1, Title: "groceries", Priority: normal, Created: createdTime},
		},
		{
			name:             "no rows",
			rows:             noteRows(),
			expectErrToMatch: tabula.ErrNotFound,
		},
		{
			name: "two rows",
			rows: noteRows().
				AddRow(noteID1.String(), "a", "NORMAL", int64(0), 0.0, "2024-02-02T02:03:12Z").
				AddRow(noteID2.String(), "b", "NORMAL", int64(0), 0.0, "2024-02-02T02:03:12Z"),
			expectErrToMatch: tabula.ErrNotUnique,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			s, mock := newMockSession(t, Options{})

			mock.
				ExpectQuery(noteSelect+` WHERE "id" = ?;`).
				WithArgs(AnyUUID{}).
				WillReturnRows(tc.rows)

			actual, err := Query[note](s).WhereEq("id", noteID1).SelectUnique(context.Background())

			if tc.expectErrToMatch != nil {
				assert.ErrorIs(err, tc.expectErrToMatch)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_Count(t *testing.T) {
	assert := assert.New(t)
	s, mock := newMockSession(t, Options{})

	mock.
		ExpectQuery(`SELECT COUNT(*) FROM "note" WHERE "pinned" = ?;`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(3)))

	actual, err := Query[note](s).WhereEq("pinned", true).Count(context.Background())

	assert.NoError(err)
	assert.Equal(int64(3), actual)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_Update(t *testing.T) {
	input := note{
		ID:       noteID1,
		Title:    "renamed",
		Priority: low,
		Score:    0.5,
		Created:  createdTime,
	}

	t.Run("named columns", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectExec(`UPDATE "note" SET "title" = ?, "priority" = ? WHERE "id" = ?;`).
			WithArgs("renamed", "LOW", noteID1.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := Query[note](s).WhereEq("id", noteID1).Update(context.Background(), input, "title", "priority")

		assert.NoError(err)
		assert.Equal(int64(1), n)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("all columns outside primary key", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.
			ExpectExec(`UPDATE "note" SET "title" = ?, "priority" = ?, "pinned" = ?, "score" = ?, "created" = ? WHERE "id" = ?;`).
			WithArgs("renamed", "LOW", int64(0), 0.5, AnyTime{EqualTo: &createdTime}, AnyUUID{}).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := Query[note](s).WhereEq("id", noteID1).Update(context.Background(), input)

		assert.NoError(err)
		assert.Equal(int64(1), n)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("unknown column", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		_, err := Query[note](s).Update(context.Background(), input, "colour")

		assert.Error(err)
		assert.Contains(err.Error(), "colour")
		assert.NoError(mock.ExpectationsWereMet())
	})
}

func Test_Delete(t *testing.T) {
	assert := assert.New(t)
	s, mock := newMockSession(t, Options{})

	mock.
		ExpectExec(`DELETE FROM "note" WHERE "priority" <> ?;`).
		WithArgs("HIGH").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := Query[note](s).Where("priority", "<>", high).Delete(context.Background())

	assert.NoError(err)
	assert.Equal(int64(4), n)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_Where_Errors(t *testing.T) {
	testCases := []struct {
		name             string
		column           string
		op               string
		value            interface{}
		expectErrToMatch error
		expectInErrMsg   string
	}{
		{
			name:           "unknown column",
			column:         "colour",
			op:             "=",
			value:          "red",
			expectInErrMsg: "no such column",
		},
		{
			name:           "bad operator",
			column:         "title",
			op:             "LIKE",
			value:          "x%",
			expectInErrMsg: "unsupported operator",
		},
		{
			name:             "wrong value type",
			column:           "pinned",
			op:               "=",
			value:            "yes",
			expectErrToMatch: tabula.ErrTypeMismatch,
		},
		{
			name:             "enum non-member",
			column:           "priority",
			op:               "=",
			value:            priority(-1),
			expectErrToMatch: tabula.ErrUnknownVariant,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			s, mock := newMockSession(t, Options{})

			q := Query[note](s).Where(tc.column, tc.op, tc.value)

			_, err := q.Select(context.Background())
			if !assert.Error(err) {
				return
			}
			if tc.expectErrToMatch != nil {
				assert.ErrorIs(err, tc.expectErrToMatch)
			}
			if tc.expectInErrMsg != "" {
				assert.Contains(err.Error(), tc.expectInErrMsg)
			}

			// the error stays until cleared
			_, err = q.Count(context.Background())
			assert.Error(err)

			mock.
				ExpectQuery(`SELECT COUNT(*) FROM "note";`).
				WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(0)))

			_, err = q.Clear().Count(context.Background())
			assert.NoError(err)
			assert.NoError(mock.ExpectationsWereMet())
		})
	}
}

func Test_Query_UnsupportedModel(t *testing.T) {
	assert := assert.New(t)
	s, mock := newMockSession(t, Options{})

	q := Query[unstorable](s)

	_, err := q.Select(context.Background())
	assert.ErrorIs(err, tabula.ErrUnsupportedType)
	assert.Contains(err.Error(), "Tags")

	err = q.Insert(context.Background(), unstorable{})
	assert.ErrorIs(err, tabula.ErrUnsupportedType)

	_, err = QueryTransactional[unstorable](context.Background(), s)
	assert.ErrorIs(err, tabula.ErrUnsupportedType)

	assert.NoError(mock.ExpectationsWereMet())
}

func Test_QueryTransactional(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})
		ctx := context.Background()

		mock.ExpectBegin()
		mock.
			ExpectExec(`DELETE FROM "note" WHERE "id" = ?;`).
			WithArgs(noteID2.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		q, err := QueryTransactional[note](ctx, s)
		if !assert.NoError(err) {
			return
		}
		assert.True(q.IsTransactional())

		n, err := q.WhereEq("id", noteID2).Delete(ctx)
		assert.NoError(err)
		assert.Equal(int64(1), n)

		assert.NoError(q.Commit())
		assert.NoError(mock.ExpectationsWereMet())

		// ended queries cannot be used or ended again
		assert.ErrorIs(q.Commit(), tabula.ErrNoTransaction)
		assert.ErrorIs(q.Rollback(), tabula.ErrNoTransaction)
		_, err = q.Delete(ctx)
		assert.ErrorIs(err, tabula.ErrNoTransaction)
	})

	t.Run("rollback", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})
		ctx := context.Background()

		mock.ExpectBegin()
		mock.
			ExpectExec(`UPDATE "note" SET "pinned" = ?;`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 7))
		mock.ExpectRollback()

		q, err := QueryTransactional[note](ctx, s)
		if !assert.NoError(err) {
			return
		}

		_, err = q.Update(ctx, note{Pinned: true}, "pinned")
		assert.NoError(err)

		assert.NoError(q.Rollback())
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		assert := assert.New(t)
		s, mock := newMockSession(t, Options{})

		mock.ExpectBegin().WillReturnError(errors.New("locked"))

		_, err := QueryTransactional[note](context.Background(), s)

		assert.ErrorIs(err, tabula.ErrDB)
		assert.NoError(mock.ExpectationsWereMet())
	})

	t.Run("plain query has no transaction", func(t *testing.T) {
		assert := assert.New(t)
		s, _ := newMockSession(t, Options{})

		q := Query[note](s)

		assert.False(q.IsTransactional())
		assert.ErrorIs(q.Commit(), tabula.ErrNoTransaction)
		assert.ErrorIs(q.Rollback(), tabula.ErrNoTransaction)
	})
}
