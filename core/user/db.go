package user

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, oauth_provider, avatar_url, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :oauth_provider, :avatar_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, usr); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, id); err != nil {
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}

	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `SELECT * FROM users WHERE email = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, email); err != nil {
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}

	return usr, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]User, error) {
	const q = `SELECT * FROM users ORDER BY created_at DESC`

	users := []User{}
	if err := sqlx.SelectContext(ctx, db, &users, q); err != nil {
		return nil, fmt.Errorf("selecting users: %w", err)
	}

	return users, nil
}

func UpdateAvatar(ctx context.Context, db sqlx.ExtContext, id string, url string) error {
	const q = `UPDATE users SET avatar_url = $2, updated_at = now() WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, id, url); err != nil {
		return fmt.Errorf("updating avatar of user[%s]: %w", id, err)
	}

	return nil
}
