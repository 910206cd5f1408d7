package testdb

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:18-alpine"

type PostgresStartRequest struct {
	Image    string
	User     string
	Password string
	DB       string
}

type PostgresStartResponse struct {
	Host string
	Port string
}

// StartPostgres runs a throwaway Postgres container. It is meant for TestMain, so failures
// are fatal.
func StartPostgres(ctx context.Context, cfg PostgresStartRequest) (PostgresStartResponse, func()) {
	image := cfg.Image
	if image == "" {
		image = defaultImage
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
			"POSTGRES_DB":       cfg.DB,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		log.Fatalf("failed to get host: %v", err)
	}

	port, err := cont.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("failed to get port: %v", err)
	}

	closer := func() {
		_ = cont.Terminate(context.Background())
	}
	return PostgresStartResponse{
		Host: host,
		Port: port.Port(),
	}, closer
}

// RunMigrations drops everything the migrations in folder created and applies them again,
// giving each test an empty schema.
func RunMigrations(t *testing.T, db *sql.DB, folder string) {
	t.Helper()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	require.NoError(t, err, "get postgres driver")

	migrator, err := migrate.NewWithDatabaseInstance("file://"+folder, "test", driver)
	require.NoError(t, err, "create migrator")

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("failed to drop existing db objects: %v", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("failed to run migrations: %v", err)
	}
}

type dbQuery struct {
	t   *testing.T
	row *sql.Row
}

func Query(t *testing.T, db *sql.DB, query string, args ...any) *dbQuery {
	t.Helper()

	row := db.QueryRow(query, args...)
	require.NoError(t, row.Err())

	return &dbQuery{
		t:   t,
		row: row,
	}
}

// Exec runs a statement that returns no rows, such as fixture inserts.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()

	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func (q *dbQuery) AsInt64() int64 {
	q.t.Helper()

	var v int64
	err := q.row.Scan(&v)
	require.NoError(q.t, err)
	return v
}

func (q *dbQuery) AsString() string {
	q.t.Helper()

	var v string
	err := q.row.Scan(&v)
	require.NoError(q.t, err)
	return v
}
