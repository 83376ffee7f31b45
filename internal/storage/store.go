package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store bundles the repositories over one database handle.
type Store struct {
	Users     *Users
	Groups    *Groups
	Templates *Templates
}

// New wires all repositories on top of db.
func New(db *sqlx.DB) *Store {
	return &Store{
		Users:     &Users{db: db},
		Groups:    &Groups{db: db},
		Templates: &Templates{db: db},
	}
}
