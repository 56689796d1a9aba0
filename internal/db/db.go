// internal/db/db.go
package db

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/luizvincenzi/criadores-slots/internal/config"
)

// Connect opens the Postgres pool and verifies connectivity.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	return conn, nil
}
