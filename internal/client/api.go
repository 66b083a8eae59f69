package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nao1215/animalbase/pkg/httpclient"
)

const (
	unreadPath  = "/api/v1/notifications/unread"
	readAllPath = "/api/v1/notifications/read-all"
	sendPath    = "/api/v1/internal/send"
)

var (
	// ErrNotLoggedIn はトークンが無いためAPIを呼べないことを表す。
	ErrNotLoggedIn = errors.New("ログインしていません")
	// ErrUnauthorized はサーバーにトークンを拒否されたことを表す。期限切れのトークンなど。
	ErrUnauthorized = errors.New("サーバーに認証を拒否されました")
)

// Record は通知APIが返す通知レコード。
type Record struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RelatedID *int64 `json:"related_id"`
	IsRead    bool   `json:"is_read"`
}

// SendRequest は通知送信APIのリクエスト。
type SendRequest struct {
	UserID    string `json:"user_id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RelatedID *int64 `json:"related_id,omitempty"`
}

// SendResult は通知送信APIのレスポンス。
type SendResult struct {
	// ID は作成された通知レコードの識別子。
	ID string `json:"id"`
	// Delivered はライブ配信に成功した接続の数。
	Delivered int `json:"delivered"`
}

// API はセッションのトークンで通知REST APIを呼び出す。
type API struct {
	rest   *httpclient.Client
	tokens TokenSource
}

// NewAPI は新しいAPIを生成する。
func NewAPI(rest *httpclient.Client, tokens TokenSource) *API {
	return &API{rest: rest, tokens: tokens}
}

// LoggedIn はトークンを持っているかどうかを返す。
func (a *API) LoggedIn() bool {
	return a.tokens.Token() != ""
}

// Unread は未読通知を新しい順に返す。
func (a *API) Unread(ctx context.Context) ([]Record, error) {
	ctx, err := a.authorize(ctx)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := a.rest.GetJSON(ctx, unreadPath, &records); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

// MarkAllRead はログイン中のユーザーの全通知を既読にする。
func (a *API) MarkAllRead(ctx context.Context) error {
	ctx, err := a.authorize(ctx)
	if err != nil {
		return err
	}
	if err := a.rest.PutJSON(ctx, readAllPath, nil, nil); err != nil {
		return classify(err)
	}
	return nil
}

// Send は通知を作成し、宛先ユーザーのライブ接続へ配信させる。
func (a *API) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	ctx, err := a.authorize(ctx)
	if err != nil {
		return SendResult{}, err
	}
	var res SendResult
	if err := a.rest.PostJSON(ctx, sendPath, req, &res); err != nil {
		return SendResult{}, classify(err)
	}
	return res, nil
}

func (a *API) authorize(ctx context.Context) (context.Context, error) {
	token := a.tokens.Token()
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	return httpclient.WithToken(ctx, token), nil
}

// classify は401をErrUnauthorizedとして区別できるようにする。
func classify(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return err
}
