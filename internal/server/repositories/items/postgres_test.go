package items

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "title", "description", "price", "image", "large_image", "user_id", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func itemRow(id, owner string) *sqlmock.Rows {
	return sqlmock.NewRows(cols).AddRow(id, "Shoes", "Nice", int64(5000), "s.jpg", "l.jpg", owner, time.Unix(0, 0))
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+items\s*\(title,\s*description,\s*price,\s*image,\s*large_image,\s*user_id\)`
	mock.ExpectQuery(q).
		WithArgs("Shoes", "Nice", int64(5000), "s.jpg", "l.jpg", "u1").
		WillReturnRows(itemRow("i1", "u1"))

	got, err := repo.Create(context.Background(), &models.Item{
		Title: "Shoes", Description: "Nice", Price: 5000, Image: "s.jpg", LargeImage: "l.jpg", UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)
	assert.Equal(t, int64(5000), got.Price)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+items\s+WHERE\s+id\s*=\s*\$1`).WithArgs("x").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(cols).
		AddRow("i1", "A", "", int64(1), "", "", "u1", time.Unix(2, 0)).
		AddRow("i2", "B", "", int64(2), "", "", "u2", time.Unix(1, 0))
	mock.ExpectQuery(`(?s)ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$1\s+OFFSET\s+\$2`).
		WithArgs(10, 20).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].Title)
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+items\s+SET\s+title\s*=\s*\$2`
	mock.ExpectQuery(q).
		WithArgs("i1", "Shoes", "Nice", int64(5000), "s.jpg", "l.jpg").
		WillReturnRows(itemRow("i1", "u1"))

	got, err := repo.Update(context.Background(), &models.Item{
		ID: "i1", Title: "Shoes", Description: "Nice", Price: 5000, Image: "s.jpg", LargeImage: "l.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestDelete_ReturnsSnapshot(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^DELETE\s+FROM\s+items\s+WHERE\s+id\s*=\s*\$1\s+RETURNING`).
		WithArgs("i1").
		WillReturnRows(itemRow("i1", "u1"))

	got, err := repo.Delete(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, "Shoes", got.Title)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	mock.ExpectQuery(`FROM\s+items\s+WHERE\s+id\s*=\s*\$1`).WithArgs("abc").WillReturnError(badUUID)
	_, err := repo.Get(context.Background(), "abc")
	require.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(`(?s)^UPDATE\s+items`).WillReturnError(badUUID)
	_, err = repo.Update(context.Background(), &models.Item{ID: "abc", Title: "Shoes"})
	require.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(`(?s)^DELETE\s+FROM\s+items`).WithArgs("abc").WillReturnError(badUUID)
	_, err = repo.Delete(context.Background(), "abc")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_OtherPgErrorIsWrapped(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+items`).WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement"})

	_, err := repo.Get(context.Background(), "i1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "db error")
}
