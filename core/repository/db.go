package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// DB wraps the registry database handle
type DB struct {
	*sql.DB
}

// NewDB opens a connection pool against the registry database
func NewDB(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}
