package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phunks/voicemail/internal/idgen"
)

// DefaultCapacity is the zeroblob pre-allocation an inbound call reserves
// before any audio has been captured: 30s of PCMU at 8000 B/s (240KB),
// rounded up per SPEC_FULL.md §4.4.
const DefaultCapacity = 300_000

// Allocate reserves capacity bytes of storage for a new voicemail row,
// using zeroblob to pre-size the BLOB the way rusqlite's incremental blob
// I/O would, without requiring CGO blob-cursor bindings: modernc.org/sqlite
// has no equivalent cursor API, so writes are simulated with substr-based
// partial UPDATEs in Append below.
func (s *Store) Allocate(ctx context.Context, id int64, caller string, capacity int) error {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	eventTime, err := idgen.FormatDate(id)
	if err != nil {
		return fmt.Errorf("store: allocating voicemail %d: %w", id, err)
	}

	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO voicemail (id, event_time, caller, time, data) VALUES (?, ?, ?, 0, zeroblob(?))`,
			id, eventTime, caller, capacity)
		if err != nil {
			return fmt.Errorf("store: allocating voicemail %d: %w", id, err)
		}
		return nil
	})
}

// Append writes payload into the pre-allocated blob for id starting at
// offset, returning the new write offset. Writes past the blob's capacity
// are truncated rather than growing the row, matching rusqlite's
// incremental blob cursor, which is physically bounded to the zeroblob's
// fixed size and cannot grow it. A failed seek/update — the row vanished,
// offset already at or past capacity, any store error — is not fatal to
// the call: the append is treated as an idempotent no-op and the prior
// offset is returned unchanged, with the failure logged.
func (s *Store) Append(ctx context.Context, id int64, offset int, payload []byte) int {
	if len(payload) == 0 {
		return offset
	}

	newOffset := offset
	err := s.do(ctx, func() error {
		var capacity int
		row := s.db.QueryRowContext(ctx, `SELECT length(data) FROM voicemail WHERE id = ?`, id)
		if err := row.Scan(&capacity); err != nil {
			return err
		}
		if offset >= capacity {
			return fmt.Errorf("offset %d at or past capacity %d", offset, capacity)
		}

		write := payload
		if offset+len(write) > capacity {
			write = write[:capacity-offset]
		}
		tail := offset + len(write) + 1
		if tail > capacity+1 {
			tail = capacity + 1
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE voicemail
			 SET data = CAST(substr(data, 1, ?) || ? || substr(data, ?) AS BLOB)
			 WHERE id = ?`,
			offset, write, tail, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no row for id %d", id)
		}
		newOffset = offset + len(write)
		return nil
	})
	if err != nil {
		slog.Warn("store: append failed, offset unchanged", "id", id, "offset", offset, "error", err)
		return offset
	}
	return newOffset
}
