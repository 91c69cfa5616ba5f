package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/reservation-availability/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository.
type ReservationRepository struct {
	db *DB
}

// NewReservationRepository creates the repository.
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// UpsertReservation inserts or replaces a reservation and its attached units.
func (r *ReservationRepository) UpsertReservation(ctx context.Context, reservation persistence.Reservation) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO reservations (id, begins_at, ends_at, buffer_before_seconds, buffer_after_seconds, state, type)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				begins_at = excluded.begins_at,
				ends_at = excluded.ends_at,
				buffer_before_seconds = excluded.buffer_before_seconds,
				buffer_after_seconds = excluded.buffer_after_seconds,
				state = excluded.state,
				type = excluded.type`,
			reservation.ID, formatTime(reservation.BeginsAt), formatTime(reservation.EndsAt),
			nullSeconds(reservation.BufferTimeBefore), nullSeconds(reservation.BufferTimeAfter),
			string(reservation.State), string(reservation.Type),
		)
		if err != nil {
			return fmt.Errorf("upsert reservation %d: %w", reservation.ID, err)
		}

		if _, err := tx.Exec(`DELETE FROM reservation_attached_units WHERE reservation_id = ?`, reservation.ID); err != nil {
			return fmt.Errorf("clear attached units: %w", err)
		}
		for _, unitID := range reservation.UnitIDs {
			if _, err := tx.Exec(`INSERT INTO reservation_attached_units (reservation_id, unit_id) VALUES (?, ?)`, reservation.ID, unitID); err != nil {
				return fmt.Errorf("attach unit %d: %w", unitID, err)
			}
		}
		return nil
	})
}

// DeleteReservation removes a reservation.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id int64) error {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListActiveReservations returns reservations in an active state ending at
// or after the horizon. Buffer resolution happens in the caller, which
// widens the horizon to cover the largest possible buffer and trims
// precisely afterwards.
func (r *ReservationRepository) ListActiveReservations(ctx context.Context, horizon time.Time) ([]persistence.Reservation, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, begins_at, ends_at, buffer_before_seconds, buffer_after_seconds, state, type
		 FROM reservations
		 WHERE state IN (?, ?, ?, ?) AND ends_at >= ?
		 ORDER BY begins_at, id`,
		string(persistence.StateCreated), string(persistence.StateConfirmed),
		string(persistence.StateWaitingForPayment), string(persistence.StateRequiresHandling),
		formatTime(horizon),
	)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		var reservation persistence.Reservation
		var beginsAt, endsAt, state, kind string
		var bufferBefore, bufferAfter sql.NullInt64

		if err := rows.Scan(&reservation.ID, &beginsAt, &endsAt, &bufferBefore, &bufferAfter, &state, &kind); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if reservation.BeginsAt, err = parseTime(beginsAt); err != nil {
			return nil, err
		}
		if reservation.EndsAt, err = parseTime(endsAt); err != nil {
			return nil, err
		}
		if bufferBefore.Valid {
			d := secondsToDuration(bufferBefore.Int64)
			reservation.BufferTimeBefore = &d
		}
		if bufferAfter.Valid {
			d := secondsToDuration(bufferAfter.Int64)
			reservation.BufferTimeAfter = &d
		}
		reservation.State = persistence.ReservationState(state)
		reservation.Type = persistence.ReservationType(kind)
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reservations {
		unitIDs, err := r.loadAttachedUnits(ctx, reservations[i].ID)
		if err != nil {
			return nil, err
		}
		reservations[i].UnitIDs = unitIDs
	}
	return reservations, nil
}

func (r *ReservationRepository) loadAttachedUnits(ctx context.Context, reservationID int64) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT unit_id FROM reservation_attached_units WHERE reservation_id = ? ORDER BY unit_id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load attached units: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan attached unit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
