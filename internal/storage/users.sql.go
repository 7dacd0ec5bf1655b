package storage

import "context"

const userColumns = `id, external_id, email, name, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.ImageUrl, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByExternalID = `SELECT ` + userColumns + ` FROM users WHERE external_id = ?`

func (q *Queries) GetUserByExternalID(ctx context.Context, externalID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByExternalID, externalID))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const createUser = `INSERT INTO users (id, external_id, email, name, image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	ID         string
	ExternalID string
	Email      string
	Name       string
	ImageUrl   string
	CreatedAt  string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, createUser,
		arg.ID, arg.ExternalID, arg.Email, arg.Name, arg.ImageUrl, arg.CreatedAt, arg.CreatedAt))
}
