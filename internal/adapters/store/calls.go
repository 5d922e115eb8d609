package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

var _ core.SessionStore = (*Store)(nil)

func (s *Store) CreateVoiceProfile(ctx context.Context, userID domain.UserID, name string) (*domain.VoiceProfile, error) {
	vp, err := domain.NewVoiceProfile(userID, name)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.SQL.QueryRowContext(ctx,
		s.rebind(`INSERT INTO voice_profile (user_id, name, created_at_unix_ms) VALUES (?, ?, ?) RETURNING id`),
		int64(userID), vp.Name, now.UnixMilli(),
	).Scan(&vp.ID)
	if err != nil {
		return nil, fmt.Errorf("insert voice profile: %w", err)
	}
	vp.CreatedAt = time.UnixMilli(now.UnixMilli())
	return vp, nil
}

// CreateSession opens a call for a profile the user owns.
func (s *Store) CreateSession(ctx context.Context, userID domain.UserID, voiceProfileID domain.VoiceProfileID) (domain.CallID, error) {
	var owner int64
	err := s.SQL.QueryRowContext(ctx,
		s.rebind(`SELECT user_id FROM voice_profile WHERE id = ?`), int64(voiceProfileID),
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("voice profile %s: %w", voiceProfileID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup voice profile: %w", err)
	}
	if domain.UserID(owner) != userID {
		return 0, fmt.Errorf("voice profile %s: %w", voiceProfileID, ErrForbidden)
	}

	var id domain.CallID
	err = s.SQL.QueryRowContext(ctx,
		s.rebind(`INSERT INTO call_session (user_id, voice_profile_id, started_at_unix_ms) VALUES (?, ?, ?) RETURNING id`),
		int64(userID), int64(voiceProfileID), s.now().UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert call session: %w", err)
	}
	return id, nil
}

// CloseSession stamps the end time once. Closing an ended call is a no-op.
func (s *Store) CloseSession(ctx context.Context, callID domain.CallID) error {
	res, err := s.SQL.ExecContext(ctx,
		s.rebind(`UPDATE call_session SET ended_at_unix_ms = ? WHERE id = ? AND ended_at_unix_ms IS NULL`),
		s.now().UnixMilli(), int64(callID),
	)
	if err != nil {
		return fmt.Errorf("close call session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.GetSession(ctx, callID); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, callID domain.CallID) (*domain.CallSession, error) {
	var (
		cs      domain.CallSession
		started int64
		ended   sql.NullInt64
	)
	err := s.SQL.QueryRowContext(ctx,
		s.rebind(`SELECT id, user_id, voice_profile_id, started_at_unix_ms, ended_at_unix_ms FROM call_session WHERE id = ?`),
		int64(callID),
	).Scan(&cs.ID, &cs.UserID, &cs.VoiceProfileID, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("call %s: %w", callID, domain.ErrUnknownCall)
	}
	if err != nil {
		return nil, fmt.Errorf("get call session: %w", err)
	}
	cs.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		cs.EndedAt = &t
	}
	return &cs, nil
}

// GetVoiceProfileID refuses calls that already ended.
func (s *Store) GetVoiceProfileID(ctx context.Context, callID domain.CallID) (domain.VoiceProfileID, error) {
	cs, err := s.GetSession(ctx, callID)
	if err != nil {
		return 0, err
	}
	if cs.Ended() {
		return 0, fmt.Errorf("call %s: %w", callID, domain.ErrCallEnded)
	}
	return cs.VoiceProfileID, nil
}

func (s *Store) GetUserID(ctx context.Context, callID domain.CallID) (domain.UserID, error) {
	cs, err := s.GetSession(ctx, callID)
	if err != nil {
		return 0, err
	}
	return cs.UserID, nil
}
