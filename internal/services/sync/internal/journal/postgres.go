package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	_ "github.com/lib/pq"
)

// PostgresConfig holds the configuration for connecting to a Postgres database
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

// Postgres persists the journal in the rsvp_journal table
type Postgres struct {
	db *sql.DB
}

// NewPostgresDB opens and pings a Postgres connection
func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Record upserts the entry of an invite
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rsvp_journal (invite_id, user_id, party_id, guest_id, local_state, confirmed_state)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (invite_id) DO UPDATE SET
		     user_id = EXCLUDED.user_id,
		     party_id = EXCLUDED.party_id,
		     guest_id = EXCLUDED.guest_id,
		     local_state = EXCLUDED.local_state,
		     confirmed_state = EXCLUDED.confirmed_state,
		     updated_at = NOW()`,
		e.InviteID, e.UserID, e.PartyID, e.GuestID, e.Local, e.Confirmed)
	if err != nil {
		return fmt.Errorf("upsert journal entry: %w", err)
	}

	return nil
}

// Get returns the entry of an invite or ErrNotFound
func (p *Postgres) Get(ctx context.Context, inviteID string) (Entry, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT invite_id, user_id, party_id, guest_id, local_state, confirmed_state, updated_at
		 FROM rsvp_journal
		 WHERE invite_id = $1`, inviteID)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("scan: %w", err)
	}

	return e, nil
}

// Confirm records the state acknowledged by the record store
func (p *Postgres) Confirm(ctx context.Context, inviteID string, state model.RSVPState) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE rsvp_journal SET confirmed_state = $2, updated_at = NOW() WHERE invite_id = $1`,
		inviteID, state)
	if err != nil {
		return fmt.Errorf("confirm journal entry: %w", err)
	}

	return nil
}

// Pending lists entries whose local state was not confirmed
func (p *Postgres) Pending(ctx context.Context, r PendingRequest) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT invite_id, user_id, party_id, guest_id, local_state, confirmed_state, updated_at
		 FROM rsvp_journal
		 WHERE local_state <> confirmed_state
		   AND ($1 = '' OR user_id = $1)
		   AND ($2 = '' OR party_id = $2)
		 ORDER BY invite_id`, r.UserID, r.PartyID)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return result, nil
}

// Forget deletes the entry of an invite
func (p *Postgres) Forget(ctx context.Context, inviteID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rsvp_journal WHERE invite_id = $1`, inviteID)
	if err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                Entry
		local, confirmed string
	)
	err := s.Scan(&e.InviteID, &e.UserID, &e.PartyID, &e.GuestID, &local, &confirmed, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}

	e.Local = model.RSVPState(local)
	e.Confirmed = model.RSVPState(confirmed)
	return e, nil
}
