package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

const userColumns = `id, email, name, password_hash, array_to_string(permissions, ','), reset_token, reset_token_expiry, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, name, password_hash, permissions)
		 VALUES ($1, $2, $3, $4::text[])
		 RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, PermissionsLiteral(user.Permissions))

	created, err := scanUser(row)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	query :=
		`UPDATE users SET reset_token = $2, reset_token_expiry = $3
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, token, expiry)
	if err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string, notBefore time.Time) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE reset_token = $1 AND reset_token_expiry >= $2
		 FOR UPDATE`
	return scanUser(r.db.QueryRowContext(ctx, query, token, notBefore))
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) (*models.User, error) {
	query :=
		`UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL
		 WHERE id = $1
		 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, userID, passwordHash))
}

func (r *PostgresRepository) UpdatePermissions(ctx context.Context, userID string, perms []models.Permission) (*models.User, error) {
	query :=
		`UPDATE users SET permissions = $2::text[]
		 WHERE id = $1
		 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, userID, PermissionsLiteral(perms)))
}

// PermissionsLiteral renders perms as a PostgreSQL text array literal.
// Labels are validated upper-case words, so no quoting is needed.
func PermissionsLiteral(perms []models.Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return "{" + strings.Join(s, ",") + "}"
}

func parsePermissions(s string) []models.Permission {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]models.Permission, len(parts))
	for i, p := range parts {
		out[i] = models.Permission(p)
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u      models.User
		perms  string
		token  sql.NullString
		expiry sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &perms, &token, &expiry, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Permissions = parsePermissions(perms)
	if token.Valid && expiry.Valid {
		u.ResetToken = &token.String
		u.ResetTokenExpiry = &expiry.Time
	}
	return &u, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
