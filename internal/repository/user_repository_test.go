package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unidocs-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userCols = []string{"id", "email", "password_hash", "first_name", "last_name", "designation", "phone", "role", "university_body_id", "is_active", "last_login", "created_at", "updated_at"}

func TestFindByEmailNormalisesLegacyRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userCols).
		AddRow("1", "Admin@Example.edu", "hash", "Exam", "Admin", nil, nil, "committee_director", "b1", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("admin@example.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), " admin@example.edu ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "b1", *user.UniversityBodyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Email: "a@example.edu", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrUniqueViolation)
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshTokenAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevokeRefreshToken(context.Background(), "t1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows(userCols).
		AddRow("1", "a@example.edu", "hash", "A", "B", nil, nil, "sub_admin", nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE 1=1 AND role = $1 AND (LOWER(email) LIKE $2 ESCAPE '\' OR LOWER(first_name) LIKE $2 ESCAPE '\' OR LOWER(last_name) LIKE $2 ESCAPE '\') ORDER BY email ASC LIMIT 10 OFFSET 10`)).
		WithArgs(models.RoleSubAdmin, "%ann%").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	role := models.RoleSubAdmin
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "Ann", Page: 2, PageSize: 10, SortBy: "email", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("DELETE FROM refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeRefreshTokens(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
