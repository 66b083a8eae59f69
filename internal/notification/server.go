package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/animalbase/internal/config"
	notificationdb "github.com/nao1215/animalbase/internal/notification/db"
	"github.com/nao1215/animalbase/internal/realtime"
	"github.com/nao1215/animalbase/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg config.Server
	// queries は通知テーブルへのクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// service は通知の永続化と配信を行う。
	service *Service
	// registry はライブ接続のレジストリ。
	registry *realtime.Registry
	// monitor はライブ接続の生存確認を行う。
	monitor *realtime.Monitor
	// live はライブチャネルのエンドポイント。
	live *realtime.Handler
	// logger はサーバーのロガー。
	logger zerolog.Logger
}

// Open はSQLiteデータベースファイルを開いて新しい通知サーバーを生成する。
func Open(ctx context.Context, cfg config.Server, logger zerolog.Logger) (*Server, error) {
	dsn := cfg.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := NewServer(ctx, sqlDB, cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewServer は接続済みのデータベースを使って新しい通知サーバーを生成する。
// 未適用のマイグレーションを適用してからルーティングを設定する。
func NewServer(ctx context.Context, sqlDB *sql.DB, cfg config.Server, logger zerolog.Logger) (*Server, error) {
	if err := initSchema(ctx, sqlDB, logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	queries := notificationdb.New(sqlDB)
	registry := realtime.NewRegistry()

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger.With().Str("component", "http").Logger()))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:   router,
		cfg:      cfg,
		queries:  queries,
		db:       sqlDB,
		service:  NewService(queries, realtime.NewDispatcher(registry, logger), logger),
		registry: registry,
		monitor:  realtime.NewMonitor(registry, cfg.HeartbeatInterval, logger),
		live: realtime.NewHandler(registry, realtime.NewAuthenticator(cfg.JWTSecret), realtime.HandlerConfig{
			WriteWait:      cfg.WriteWait,
			MaxMessageSize: cfg.MaxMessageSize,
			AllowedOrigins: cfg.AllowedOrigins,
		}, logger),
		logger: logger,
	}
	s.setupRoutes()

	return s, nil
}

// Service は業務処理から通知を発行するためのServiceを返す。
func (s *Server) Service() *Service {
	return s.service
}

// Handler はHTTPハンドラとしてのルーターを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーと生存確認を起動し、コンテキストが終了するとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", srv.Addr).Msg("通知サービスを起動します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.monitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("通知サービスを停止します")

		// ハイジャックされたWebSocket接続はShutdownの対象外なので先に閉じる
		s.live.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得（最新50件）
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 未読件数取得
			notifications.GET("/unread/count", s.handleUnreadCount())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
		}

		// 通知送信（内部API - 他サービスの業務処理から呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/send", s.handleSend())
		}
	}

	// ライブチャネル（認証はハンドシェイクで行う）
	s.router.GET("/ws", s.live.ServeWS())

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())

	// メトリクス
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Type は通知の種類。
	Type string `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// RelatedID は関連エンティティの識別子。無い場合はnull。
	RelatedID *int64 `json:"related_id"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n notificationdb.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead != 0,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.RelatedID.Valid {
		id := n.RelatedID.Int64
		resp.RelatedID = &id
	}
	return resp
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []notificationdb.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// handleHealth はヘルスチェックのハンドラ。ライブ接続の数も返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "notification",
			"connections": s.registry.Len(),
		})
	}
}

// handleList は認証済みユーザーの最新の通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListNotificationsByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Str("user_id", userID).Msg("通知一覧取得エラー")
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Str("user_id", userID).Msg("未読通知一覧取得エラー")
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleUnreadCount は認証済みユーザーの未読通知の件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.queries.CountUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			s.logger.Error().Err(err).Str("user_id", userID).Msg("未読件数取得エラー")
			return
		}

		c.JSON(http.StatusOK, gin.H{"unread_count": count})
	}
}

// errNotOwner は他のユーザーの通知を操作しようとしたことを表す。
var errNotOwner = errors.New("通知の所有者ではありません")

// markAsRead は所有者の確認と既読への更新を1つのトランザクションで行う。
// 通知が無い場合は sql.ErrNoRows、所有者でない場合は errNotOwner を返す。
func (s *Server) markAsRead(ctx context.Context, userID, notificationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	n, err := qtx.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return errNotOwner
	}
	if err := qtx.MarkAsRead(ctx, notificationID); err != nil {
		return fmt.Errorf("既読への更新に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")
		if notificationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが必要です"})
			return
		}

		err := s.markAsRead(c.Request.Context(), userID, notificationID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		case errors.Is(err, errNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			s.logger.Error().Err(err).Str("id", notificationID).Msg("通知既読処理エラー")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.queries.MarkAllAsRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			s.logger.Error().Err(err).Str("user_id", userID).Msg("全通知既読処理エラー")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}

// sendRequest は通知送信リクエストのJSON構造。
type sendRequest struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// Type は通知の種類（new_sighting, adoption_update など）。
	Type string `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Message は通知メッセージ。
	Message string `json:"message" binding:"required"`
	// RelatedID は関連エンティティの識別子。
	RelatedID *int64 `json:"related_id"`
}

// handleSend は通知を永続化してからライブ接続へ配信するハンドラ。
// 内部API（他サービスの業務処理から呼び出される）。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		id, delivered, err := s.service.deliver(c.Request.Context(), req.UserID, req.Type, req.Title, req.Message, req.RelatedID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("通知作成エラー")
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":        id,
			"message":   "通知を送信しました",
			"delivered": delivered,
		})
	}
}
