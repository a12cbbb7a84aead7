package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRelationshipRepositoryIsChildOf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRelationshipRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM parent_children")).
		WithArgs("p1", "st1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.IsChildOf(context.Background(), "p1", "st1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepositoryMissingRowMeansFalse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRelationshipRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM parent_children")).
		WithArgs("p1", "st9").
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.IsChildOf(context.Background(), "p1", "st9")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepositoryTeaches(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRelationshipRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classroom_students cs")).
		WithArgs("t1", "st1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.Teaches(context.Background(), "t1", "st1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepositoryHasChildInSchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRelationshipRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM parent_children pc")).
		WithArgs("p1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.HasChildInSchool(context.Background(), "p1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
