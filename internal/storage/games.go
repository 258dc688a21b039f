package storage

import (
	"context"
	"database/sql"
	"errors"
)

type GameScore struct {
	UserID string
	Score  int64
}

func (s *Store) GameChannel(ctx context.Context, guildID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT channel_id FROM game_channels WHERE guild_id = ?`, guildID)
	var channelID string
	if err := row.Scan(&channelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return channelID, nil
}

func (s *Store) SetGameChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_channels (guild_id, channel_id) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET channel_id = excluded.channel_id
	`, guildID, channelID)
	return err
}

func (s *Store) Score(ctx context.Context, guildID, userID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT score FROM game_scores WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	var score int64
	if err := row.Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return score, nil
}

// AddScore adjusts a user's score by delta and returns the new value.
func (s *Store) AddScore(ctx context.Context, guildID, userID string, delta int64) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_scores (guild_id, user_id, score) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET score = score + excluded.score
	`, guildID, userID, delta)
	if err != nil {
		return 0, err
	}
	return s.Score(ctx, guildID, userID)
}

func (s *Store) TopScores(ctx context.Context, guildID string, limit int) ([]GameScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, score FROM game_scores
		WHERE guild_id = ?
		ORDER BY score DESC, user_id
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []GameScore
	for rows.Next() {
		var score GameScore
		if err := rows.Scan(&score.UserID, &score.Score); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
