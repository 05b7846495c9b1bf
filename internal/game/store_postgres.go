package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

const roomColumns = `id, code, status, host_id, max_players, passcode_hash, seats, state, version,
	created_at, updated_at, last_action_at, reminded_at`

// PostgresStore keeps rooms in hotel.rooms. Updates run in serializable
// transactions and are retried on serialization failures.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateRoom(ctx context.Context, room Room) error {
	seats, err := json.Marshal(room.Seats)
	if err != nil {
		return err
	}
	state, err := marshalState(room.State)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO hotel.rooms (id, code, status, host_id, max_players, passcode_hash, seats, state, version,
			created_at, updated_at, last_action_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, room.ID, room.Code, room.Status, room.HostID, room.MaxPlayers, room.PasscodeHash, seats, state,
		room.Version, room.CreatedAt, room.UpdatedAt, room.LastActionAt)
	if isUniqueViolation(err) {
		return ErrDuplicateRoomCode
	}
	return err
}

func (p *PostgresStore) GetRoom(ctx context.Context, code string) (Room, error) {
	return scanRoom(p.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM hotel.rooms WHERE code = $1`, code))
}

func (p *PostgresStore) UpdateRoom(ctx context.Context, code string, claim *Claim, fn func(*Room) error) (Room, error) {
	var out Room
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return out, err
		}
		err = func() error {
			defer tx.Rollback(ctx)

			if claim != nil {
				if err := claimIdempotency(ctx, tx, claim.UserID, claim.Key, claim.Action); err != nil {
					return err
				}
			}
			room, err := scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM hotel.rooms WHERE code = $1 FOR UPDATE`, code))
			if err != nil {
				return err
			}
			if err := fn(&room); err != nil {
				return err
			}
			room.Version++

			seats, err := json.Marshal(room.Seats)
			if err != nil {
				return err
			}
			state, err := marshalState(room.State)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE hotel.rooms
				SET status = $2, host_id = $3, max_players = $4, seats = $5, state = $6, version = $7,
					updated_at = $8, last_action_at = $9, reminded_at = $10
				WHERE id = $1
			`, room.ID, room.Status, room.HostID, room.MaxPlayers, seats, state, room.Version,
				room.UpdatedAt, room.LastActionAt, room.RemindedAt); err != nil {
				return err
			}
			out = room
			return tx.Commit(ctx)
		}()
		if err == nil {
			return out, nil
		}
		if !isSerializationError(err) {
			return Room{}, err
		}
		if attempt == maxAttempts-1 {
			return Room{}, ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return Room{}, err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return Room{}, ErrTxConflict
}

func (p *PostgresStore) ListRooms(ctx context.Context, status RoomStatus, idleBefore time.Time) ([]Room, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM hotel.rooms
		WHERE status = $1 AND last_action_at < $2
		ORDER BY last_action_at
		LIMIT 500
	`, status, idleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func scanRoom(row pgx.Row) (Room, error) {
	var r Room
	var seats, state []byte
	err := row.Scan(&r.ID, &r.Code, &r.Status, &r.HostID, &r.MaxPlayers, &r.PasscodeHash, &seats, &state,
		&r.Version, &r.CreatedAt, &r.UpdatedAt, &r.LastActionAt, &r.RemindedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, err
	}
	if err := json.Unmarshal(seats, &r.Seats); err != nil {
		return Room{}, fmt.Errorf("decode seats for room %s: %w", r.Code, err)
	}
	if len(state) > 0 && string(state) != "null" {
		var st engine.State
		if err := json.Unmarshal(state, &st); err != nil {
			return Room{}, fmt.Errorf("decode state for room %s: %w", r.Code, err)
		}
		r.State = &st
	}
	return r, nil
}

func marshalState(st *engine.State) ([]byte, error) {
	if st == nil {
		return nil, nil
	}
	return json.Marshal(st)
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO hotel.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
