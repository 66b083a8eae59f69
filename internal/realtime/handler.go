package realtime

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/animalbase/pkg/wire"
	"github.com/rs/zerolog"
)

const (
	// defaultWriteWait は1回の書き込みに許す既定の時間。
	defaultWriteWait = 10 * time.Second
	// defaultMaxMessageSize はクライアントから受け取るフレームの既定の最大バイト数。
	defaultMaxMessageSize = 4096
	// reasonShutdown はサーバー停止時のクローズ理由。
	reasonShutdown = "server shutdown"
)

// HandlerConfig はライブチャネルのエンドポイントの設定。
type HandlerConfig struct {
	// WriteWait は1回の書き込みに許す時間。
	WriteWait time.Duration
	// MaxMessageSize はクライアントから受け取るフレームの最大バイト数。
	MaxMessageSize int64
	// AllowedOrigins は接続を許可するオリジン。"*" を含めると全て許可する。
	AllowedOrigins []string
}

// Handler はライブチャネルのエンドポイント。
// 接続を認証し、レジストリに登録し、切断されるまで受信を続ける。
type Handler struct {
	registry *Registry
	auth     *Authenticator
	upgrader websocket.Upgrader
	cfg      HandlerConfig
	logger   zerolog.Logger
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(registry *Registry, auth *Authenticator, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		registry: registry,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		cfg:    cfg,
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

// originChecker は許可リストに基づくOriginの検査関数を返す。
// Originヘッダーの無いリクエスト（ブラウザ以外のクライアント）は常に許可する。
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeWS はWebSocket接続を受け付けるハンドラを返す。
// 認証に失敗した接続はクローズコード4001で閉じ、レジストリには登録しない。
func (h *Handler) ServeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authErr := h.auth.Authenticate(c.Request)

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("WebSocketへのアップグレードに失敗")
			return
		}
		transport := newWSTransport(conn, h.cfg.WriteWait)

		if authErr != nil {
			rejectedTotal.WithLabelValues(rejectReason(authErr)).Inc()
			h.logger.Info().Err(authErr).Str("remote", c.ClientIP()).Msg("認証に失敗した接続を拒否しました")
			_ = transport.CloseWith(CloseUnauthorized, reasonUnauthorized)
			return
		}

		connection := NewConnection(userID, transport)
		conn.SetReadLimit(h.cfg.MaxMessageSize)
		conn.SetPongHandler(func(string) error {
			connection.MarkAlive()
			return nil
		})

		ready, err := wire.Encode(wire.Connected{Message: wire.ReadyMessage})
		if err != nil {
			h.logger.Error().Err(err).Msg("接続確立フレームのシリアライズに失敗")
			connection.Close(websocket.CloseInternalServerErr, "")
			return
		}
		err = connection.announce(func() { h.registry.Admit(userID, connection) }, ready)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("接続確立フレームの送信に失敗")
			h.registry.Remove(userID, connection)
			connection.Terminate()
			return
		}
		admittedTotal.Inc()
		h.logger.Info().Str("user_id", userID).Str("conn_id", connection.ID).Msg("接続を登録しました")

		h.readLoop(conn)

		h.registry.Remove(userID, connection)
		connection.Terminate()
		h.logger.Info().Str("user_id", userID).Str("conn_id", connection.ID).Msg("接続を解除しました")
	}
}

// readLoop は接続が閉じられるまで受信を続ける。
// クライアントからのフレームの内容は使わないが、pong処理と切断検知のために読み続ける。
func (h *Handler) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Msg("接続が予期せず閉じられました")
			}
			return
		}
	}
}

// Shutdown は登録されている全接続をレジストリから取り除き、クローズフレームを送って閉じる。
func (h *Handler) Shutdown() {
	for _, c := range h.registry.Snapshot() {
		h.registry.Remove(c.UserID, c)
		c.Close(websocket.CloseGoingAway, reasonShutdown)
	}
}
