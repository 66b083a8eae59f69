package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	notificationdb "github.com/nao1215/animalbase/internal/notification/db"
	"github.com/nao1215/animalbase/pkg/wire"
	"github.com/rs/zerolog"
)

// Dispatcher はユーザーのライブ接続へ通知を配信する。
type Dispatcher interface {
	// Dispatch は通知を配信し、送信に成功した接続の数を返す。
	Dispatch(ctx context.Context, userID string, n wire.Notification) int
}

// Service は通知の永続化と配信をまとめる。
// 業務処理からは Notify を呼び出す。
type Service struct {
	queries    *notificationdb.Queries
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewService は新しいServiceを生成する。
func NewService(queries *notificationdb.Queries, dispatcher Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		queries:    queries,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// Notify は通知を永続化してから、ユーザーのライブ接続へ配信する。
// 失敗はログに記録するだけで呼び出し元には返さない。永続化に失敗した通知は配信しない。
func (s *Service) Notify(ctx context.Context, userID, kind, title, message string, relatedID *int64) {
	if _, _, err := s.deliver(ctx, userID, kind, title, message, relatedID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", kind).Msg("通知の作成に失敗")
	}
}

// deliver は通知を永続化してから配信し、通知IDと配信できた接続の数を返す。
func (s *Service) deliver(ctx context.Context, userID, kind, title, message string, relatedID *int64) (string, int, error) {
	id := uuid.New().String()

	params := notificationdb.CreateNotificationParams{
		ID:      id,
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if relatedID != nil {
		params.RelatedID = sql.NullInt64{Int64: *relatedID, Valid: true}
	}
	if err := s.queries.CreateNotification(ctx, params); err != nil {
		return "", 0, fmt.Errorf("通知の保存に失敗: %w", err)
	}

	delivered := s.dispatcher.Dispatch(ctx, userID, wire.Notification{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	})
	s.logger.Info().
		Str("id", id).
		Str("user_id", userID).
		Str("kind", kind).
		Int("delivered", delivered).
		Msg("通知を作成しました")
	return id, delivered, nil
}
