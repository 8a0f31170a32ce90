package storage

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// AppendAudit records an access-state change (grants, revocations, expiry
// notices). Entries are pruned by the housekeeping cron.
func (s *Store) AppendAudit(ctx context.Context, userID int64, action, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(id, at, user_id, action, detail) VALUES(?, ?, ?, ?, ?)`,
		ulid.Make().String(), time.Now().UTC().Unix(), userID, action, toNullString(detail))
	return err
}

// PruneAudit deletes audit entries older than the cutoff and reports how many
// were removed.
func (s *Store) PruneAudit(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit WHERE at < ?`, olderThan.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
