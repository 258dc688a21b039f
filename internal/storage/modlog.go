package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ModLogEntry is one row of the append-only moderation log. Duration is
// nil for actions that are not time-bounded, -1 for permanent ones and
// a positive number of minutes otherwise. Rows are never deleted;
// Complete flips to true once the punishment has been resolved.
type ModLogEntry struct {
	ID          int64
	GuildID     string
	Moderator   string
	ModeratorID string
	User        string
	UserID      string
	Timestamp   time.Time
	Kind        string
	Duration    *int64
	Reason      string
	Complete    bool
}

func (s *Store) AppendModLog(ctx context.Context, entry ModLogEntry) (int64, error) {
	var duration any
	if entry.Duration != nil {
		duration = *entry.Duration
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO modlog (guild_id, moderator, moderator_id, user, user_id, timestamp, type, duration, reason, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.GuildID, entry.Moderator, entry.ModeratorID, entry.User, entry.UserID,
		entry.Timestamp.Unix(), entry.Kind, duration, entry.Reason, boolToInt(entry.Complete))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// MarkComplete flips every incomplete row for the guild/user pair.
// Calling it again is a no-op.
func (s *Store) MarkComplete(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE modlog SET complete = 1
		WHERE guild_id = ? AND user_id = ? AND complete = 0
	`, guildID, userID)
	return err
}

// HasIncomplete reports whether an open entry of the given type exists
// for the guild/user pair.
func (s *Store) HasIncomplete(ctx context.Context, guildID, userID, kind string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM modlog
		WHERE guild_id = ? AND user_id = ? AND type = ? AND complete = 0
		LIMIT 1
	`, guildID, userID, kind)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RecentModLog returns up to limit entries for the user, newest first,
// keeping only rows whose type or reason contains the filter
// (sqlite LIKE is case-insensitive for ASCII).
func (s *Store) RecentModLog(ctx context.Context, guildID, userID string, limit int, filter string) ([]ModLogEntry, error) {
	search := "%" + filter + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, moderator, moderator_id, user, user_id, timestamp, type, duration, reason, complete
		FROM modlog
		WHERE guild_id = ? AND user_id = ? AND (type LIKE ? OR reason LIKE ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, guildID, userID, search, search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModLog(rows)
}

// IncompleteModLog returns every row with complete = 0, oldest first.
// Used once at startup to rebuild the punishment scheduler.
func (s *Store) IncompleteModLog(ctx context.Context) ([]ModLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, moderator, moderator_id, user, user_id, timestamp, type, duration, reason, complete
		FROM modlog
		WHERE complete = 0
		ORDER BY timestamp
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModLog(rows)
}

func scanModLog(rows *sql.Rows) ([]ModLogEntry, error) {
	var entries []ModLogEntry
	for rows.Next() {
		var entry ModLogEntry
		var ts int64
		var duration sql.NullInt64
		var complete int
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.Moderator, &entry.ModeratorID,
			&entry.User, &entry.UserID, &ts, &entry.Kind, &duration, &entry.Reason, &complete); err != nil {
			return nil, err
		}
		entry.Timestamp = time.Unix(ts, 0)
		if duration.Valid {
			value := duration.Int64
			entry.Duration = &value
		}
		entry.Complete = complete == 1
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
