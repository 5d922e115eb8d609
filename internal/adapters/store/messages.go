package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/callbridge/internal/domain"
)

func (s *Store) PersistMessage(ctx context.Context, callID domain.CallID, speaker domain.Speaker, text string) error {
	res, err := s.SQL.ExecContext(ctx,
		s.rebind(`INSERT INTO message (call_session_id, sender, content, created_at_unix_ms)
			SELECT id, CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT) FROM call_session WHERE id = ?`),
		string(speaker), text, s.now().UnixMilli(), int64(callID),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("call %s: %w", callID, domain.ErrUnknownCall)
	}
	return nil
}

// ListMessages returns the transcript of one call in spoken order.
func (s *Store) ListMessages(ctx context.Context, callID domain.CallID) ([]domain.Message, error) {
	if _, err := s.GetSession(ctx, callID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx,
		`SELECT id, call_session_id, sender, content, created_at_unix_ms FROM message
			WHERE call_session_id = ? ORDER BY created_at_unix_ms, id`,
		int64(callID),
	)
}

// ListMessagesByParticipant returns every line a user exchanged with one
// voice profile, across calls.
func (s *Store) ListMessagesByParticipant(ctx context.Context, userID domain.UserID, participant string) ([]domain.Message, error) {
	return s.queryMessages(ctx,
		`SELECT m.id, m.call_session_id, m.sender, m.content, m.created_at_unix_ms FROM message m
			JOIN call_session cs ON cs.id = m.call_session_id
			JOIN voice_profile vp ON vp.id = cs.voice_profile_id
			WHERE cs.user_id = ? AND vp.name = ?
			ORDER BY m.created_at_unix_ms, m.id`,
		int64(userID), participant,
	)
}

// ListParticipants names the voice profiles a user has talked to.
func (s *Store) ListParticipants(ctx context.Context, userID domain.UserID) ([]string, error) {
	rows, err := s.SQL.QueryContext(ctx,
		s.rebind(`SELECT DISTINCT vp.name FROM call_session cs
			JOIN voice_profile vp ON vp.id = cs.voice_profile_id
			WHERE cs.user_id = ? ORDER BY vp.name`),
		int64(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := s.SQL.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var (
			m      domain.Message
			sender string
			ts     int64
		)
		if err := rows.Scan(&m.ID, &m.CallID, &sender, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = domain.Speaker(sender)
		m.Timestamp = time.UnixMilli(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}
