package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"remindbot/internal/access"
)

// EnsureUser creates the user row if it does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, created_at) VALUES(?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		id, time.Now().UTC().Unix(),
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (access.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, timezone, trial_start, trial_end, subscribed_until, expired_notified, created_at
		 FROM users WHERE user_id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (access.User, error) {
	var (
		u         access.User
		tz        sql.NullString
		ts, te    sql.NullInt64
		until     sql.NullInt64
		notified  int
		createdAt int64
	)
	err := row.Scan(&u.ID, &tz, &ts, &te, &until, &notified, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.User{}, access.ErrNotFound
	}
	if err != nil {
		return access.User{}, err
	}
	u.Timezone = fromNullString(tz)
	u.TrialStart = fromNullUnix(ts)
	u.TrialEnd = fromNullUnix(te)
	u.SubscribedUntil = fromNullUnix(until)
	u.ExpiredNotified = notified != 0
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return u, nil
}

// SetTimezone stores a zone name ("" clears it). The row is created on demand.
func (s *Store) SetTimezone(ctx context.Context, id int64, zone string) error {
	if err := s.EnsureUser(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET timezone = ? WHERE user_id = ?`,
		toNullString(zone), id)
	return err
}

// GrantTrial installs the trial window only when none was ever set, in a
// single conditional UPDATE. Reports whether this call installed it.
func (s *Store) GrantTrial(ctx context.Context, id int64, start, end time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET trial_start = ?, trial_end = ?, expired_notified = 0
		 WHERE user_id = ? AND trial_start IS NULL AND trial_end IS NULL`,
		start.UTC().Unix(), end.UTC().Unix(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExtendSubscription sets subscribed_until = max(current, now) + d and clears
// expired_notified. The MAX runs inside the UPDATE so two concurrent
// extensions both stack instead of one clobbering the other.
func (s *Store) ExtendSubscription(ctx context.Context, id int64, now time.Time, d time.Duration) (time.Time, error) {
	var until time.Time
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET subscribed_until = MAX(COALESCE(subscribed_until, 0), ?) + ?,
			     expired_notified = 0
			 WHERE user_id = ?`,
			now.UTC().Unix(), int64(d.Seconds()), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return access.ErrNotFound
		}
		var ts int64
		if err := tx.QueryRowContext(ctx,
			`SELECT subscribed_until FROM users WHERE user_id = ?`, id).Scan(&ts); err != nil {
			return err
		}
		until = time.Unix(ts, 0).UTC()
		return nil
	})
	return until, err
}

// RevokeSubscription clears the grant; trial fields and expired_notified are
// untouched so an active trial keeps the user inside the access window.
func (s *Store) RevokeSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscribed_until = NULL WHERE user_id = ?`, id)
	return err
}

// ClaimExpiryNotice atomically flips expired_notified from false to true.
// Exactly one of any number of concurrent callers gets claimed=true; that
// caller sends the notice.
func (s *Store) ClaimExpiryNotice(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET expired_notified = 1
		 WHERE user_id = ? AND expired_notified = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUsersWithTimezone returns every user that has picked a zone; this is
// the recovery working set after a restart.
func (s *Store) ListUsersWithTimezone(ctx context.Context) ([]access.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, timezone, trial_start, trial_end, subscribed_until, expired_notified, created_at
		 FROM users
		 WHERE timezone IS NOT NULL AND timezone <> ''
		 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.User
	for rows.Next() {
		var (
			u         access.User
			tz        sql.NullString
			ts, te    sql.NullInt64
			until     sql.NullInt64
			notified  int
			createdAt int64
		)
		if err := rows.Scan(&u.ID, &tz, &ts, &te, &until, &notified, &createdAt); err != nil {
			return nil, err
		}
		u.Timezone = fromNullString(tz)
		u.TrialStart = fromNullUnix(ts)
		u.TrialEnd = fromNullUnix(te)
		u.SubscribedUntil = fromNullUnix(until)
		u.ExpiredNotified = notified != 0
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}
