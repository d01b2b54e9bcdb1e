package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phunks/voicemail/internal/codecutil"
)

// SampleRate is PCMU's fixed sample rate; Entry.Duration is derived from
// the sample count stored in the "time" column.
const SampleRate = 8000

// Entry is one voicemail row as the query facade and the HTTP browsing
// surface see it: caller identity resolved against the contacts table
// where one exists.
type Entry struct {
	ID          int64
	EventTime   string
	Caller      string
	ContactName string
	Samples     int
}

// Duration returns the recording's length.
func (e Entry) Duration() float64 {
	return float64(e.Samples) / SampleRate
}

// List returns every voicemail, most recent first, with contact names
// resolved where a matching contacts row exists.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.do(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT v.id, v.event_time, v.caller, v.time, c.name
			FROM voicemail v
			LEFT JOIN contacts c ON c.caller = v.caller
			ORDER BY v.id DESC`)
		if err != nil {
			return fmt.Errorf("store: listing voicemail: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			var name sql.NullString
			if err := rows.Scan(&e.ID, &e.EventTime, &e.Caller, &e.Samples, &name); err != nil {
				return fmt.Errorf("store: scanning voicemail row: %w", err)
			}
			if name.Valid {
				e.ContactName = name.String
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

// ErrNotFound is returned when a query targets a voicemail id that does
// not exist.
var ErrNotFound = errors.New("store: voicemail not found")

// ReadVoice returns the trimmed recorded audio for id — trailing
// zero-padding left over from the zeroblob pre-allocation is stripped.
func (s *Store) ReadVoice(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := s.do(ctx, func() error {
		var raw []byte
		row := s.db.QueryRowContext(ctx, `SELECT data FROM voicemail WHERE id = ?`, id)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("store: reading voicemail %d: %w", id, err)
		}
		data = codecutil.TrimNullBytes(raw)
		return nil
	})
	return data, err
}

// UpdateTime records the final sample count captured for id, once the
// call has ended and the true length is known.
func (s *Store) UpdateTime(ctx context.Context, id int64, samples int) error {
	return s.do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE voicemail SET time = ? WHERE id = ?`, samples, id)
		if err != nil {
			return fmt.Errorf("store: updating time for voicemail %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes a voicemail row entirely.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM voicemail WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: deleting voicemail %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NullBlob clears the recorded audio for id while leaving the row (and
// its caller/time metadata) in place.
func (s *Store) NullBlob(ctx context.Context, id int64) error {
	return s.do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE voicemail SET data = NULL WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: clearing voicemail %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpsertContact assigns or replaces the display name shown for a caller
// identity.
func (s *Store) UpsertContact(ctx context.Context, callerID, name string) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO contacts (caller, name) VALUES (?, ?)
			ON CONFLICT(caller) DO UPDATE SET name = excluded.name`,
			callerID, name)
		if err != nil {
			return fmt.Errorf("store: upserting contact %q: %w", callerID, err)
		}
		return nil
	})
}

// DeleteContact removes a caller's display name, reverting list entries
// to the bare caller identity.
func (s *Store) DeleteContact(ctx context.Context, callerID string) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE caller = ?`, callerID)
		if err != nil {
			return fmt.Errorf("store: deleting contact %q: %w", callerID, err)
		}
		return nil
	})
}
