package user

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a referenced user id or username does not
// exist. Handlers map it to a 404.
var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	var id int
	query := `INSERT INTO users (username, password, first_name, last_name, job_position)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Password, user.FirstName, user.LastName, user.JobPosition).Scan(&id)
	if err != nil {
		return nil, err
	}

	user.ID = id
	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password, first_name, last_name, job_position
	          FROM users WHERE username = $1`

	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.Password, &u.FirstName, &u.LastName, &u.JobPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*User, error) {
	u := &User{}
	query := `SELECT id, username, first_name, last_name, job_position
	          FROM users WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.JobPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

// Search matches the query against username and name parts, excluding the
// caller. We limit to 10 to keep it fast.
func (r *Repository) Search(ctx context.Context, excludeID int, query string) ([]*User, error) {
	q := `SELECT id, username, first_name, last_name, job_position
	      FROM users
	      WHERE id != $1
	        AND (username ILIKE $2 OR first_name ILIKE $2 OR last_name ILIKE $2)
	      ORDER BY username
	      LIMIT 10`
	rows, err := r.db.QueryContext(ctx, q, excludeID, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.JobPosition); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
