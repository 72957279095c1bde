package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/kujifunza/core"
	appfs "github.com/trezcool/kujifunza/fs"
)

// Postgres error codes
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

const (
	pingAttempts = 30
	pingStep     = 100 * time.Millisecond
)

func dsn(conf core.DatabaseConfig, dbName string, admin bool) string {
	user := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	q := make(url.Values)
	q.Set("sslmode", "require")
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     user,
		Host:     conf.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the application database and waits until it answers.
func Open(conf *core.Config) (*sql.DB, error) {
	return OpenDSN(dsn(conf.Database, conf.Database.Name, false))
}

// OpenDSN opens and pings the postgres database at dsn.
func OpenDSN(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a postgres unique violation, optionally on the given constraint.
func IsUniqueViolation(err error, constraint ...string) bool {
	return isPQError(err, codeUniqueViolation, constraint...)
}

// IsForeignKeyViolation reports whether err is a postgres foreign key violation, optionally on the given constraint.
func IsForeignKeyViolation(err error, constraint ...string) bool {
	return isPQError(err, codeForeignKeyViolation, constraint...)
}

func isPQError(err error, code string, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != code {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}

// ping waits for the database to be ready, backing off a little more after each failed attempt.
func ping(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempt) * pingStep):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sql.DB, q string, arg interface{}) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (`+q+`)`, arg).Scan(&ok)
	return ok, err
}

// CreateIfNotExist bootstraps the application role (as admin) and database (as the application role).
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()
	dbConf := conf.Database

	if dbConf.User != "" {
		err := withDB(ctx, dsn(dbConf, "postgres", true), func(db *sql.DB) error {
			found, err := exists(ctx, db, `SELECT 1 FROM pg_roles WHERE rolname = $1`, dbConf.User)
			if err != nil || found {
				return err
			}
			_, err = db.ExecContext(ctx, "CREATE USER "+pq.QuoteIdentifier(dbConf.User)+
				" CREATEDB ENCRYPTED PASSWORD "+pq.QuoteLiteral(dbConf.Password))
			return err
		})
		if err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}

	err := withDB(ctx, dsn(dbConf, "postgres", false), func(db *sql.DB) error {
		found, err := exists(ctx, db, `SELECT 1 FROM pg_database WHERE datname = $1`, dbConf.Name)
		if err != nil || found {
			return err
		}
		_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbConf.Name))
		return err
	})
	return errors.Wrap(err, "creating database")
}

func withDB(ctx context.Context, dsn string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err = ping(ctx, db); err != nil {
		return err
	}
	return fn(db)
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	return errors.Wrap(goose.RunFS("up", db, appfs.FS, "migrations"), "migrating database")
}
