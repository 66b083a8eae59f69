package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// MinPollInterval はポーリング間隔の下限。
const MinPollInterval = time.Minute

// ErrInvalid は設定値が不正であることを表す。
var ErrInvalid = errors.New("設定値が不正です")

// Config は設定ファイル全体。
type Config struct {
	// Server は通知サービスの設定。
	Server Server `yaml:"server"`
	// Client は通知クライアントの設定。
	Client Client `yaml:"client"`
}

// Server は通知サービスの設定。
type Server struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `yaml:"database_path"`
	// JWTSecret はJWTの署名検証に使う秘密鍵。
	JWTSecret string `yaml:"jwt_secret"`
	// HeartbeatInterval は生存確認の間隔。
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// WriteWait は1回の書き込みに許す時間。
	WriteWait time.Duration `yaml:"write_wait"`
	// MaxMessageSize はクライアントから受け取るフレームの最大バイト数。
	MaxMessageSize int64 `yaml:"max_message_size"`
	// AllowedOrigins はCORSとWebSocketで許可するオリジン。"*" は全て許可する。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Client は通知クライアントの設定。
type Client struct {
	// APIURL はREST APIのベースURL。
	APIURL string `yaml:"api_url"`
	// WSURL はライブチャネルのURL。
	WSURL string `yaml:"ws_url"`
	// Token はログイン済みセッションのJWT。空ならログアウト状態。
	Token string `yaml:"token"`
	// BackoffFloor は再接続待ち時間の初期値。
	BackoffFloor time.Duration `yaml:"backoff_floor"`
	// BackoffCeiling は再接続待ち時間の上限。
	BackoffCeiling time.Duration `yaml:"backoff_ceiling"`
	// PollInterval は未読通知のポーリング間隔。
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxAlerts は1回のポーリングで表示する通知の最大件数。
	MaxAlerts int `yaml:"max_alerts"`
	// DedupCapacity は重複表示の抑止のために覚えておく通知IDの数。
	DedupCapacity int `yaml:"dedup_capacity"`
}

// Default は埋め込みの既定設定を返す。
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// Parse は既定設定にYAMLを重ねた設定を返す。検証は行わない。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("既定設定の読み込みに失敗: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
		}
	}
	return &cfg, nil
}

// Load は設定を読み込み、環境変数で上書きする。
// path が空の場合は既定設定だけを使う。
// 各セクションの検証は、そのセクションを使うバイナリが Server.Validate / Client.Validate で行う。
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		data = b
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv は環境変数の値で設定を上書きする。
// lookup には os.LookupEnv を渡す。テストでは差し替えられる。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, v, err)
		}
		*dst = d
		return nil
	}

	setString("PORT", &c.Server.Port)
	setString("DATABASE_PATH", &c.Server.DatabasePath)
	setString("JWT_SECRET", &c.Server.JWTSecret)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if err := setDuration("HEARTBEAT_INTERVAL", &c.Server.HeartbeatInterval); err != nil {
		return err
	}

	setString("API_URL", &c.Client.APIURL)
	setString("WS_URL", &c.Client.WSURL)
	setString("AUTH_TOKEN", &c.Client.Token)
	if err := setDuration("POLL_INTERVAL", &c.Client.PollInterval); err != nil {
		return err
	}
	if v, ok := lookup("MAX_ALERTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MAX_ALERTS=%q: %w", ErrInvalid, v, err)
		}
		c.Client.MaxAlerts = n
	}
	return nil
}

// Validate は通知サービスの設定値を検証する。
func (s Server) Validate() error {
	var errs []error
	if s.Port == "" {
		errs = append(errs, errors.New("server.port が空です"))
	}
	if s.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret が空です"))
	}
	if s.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("server.heartbeat_interval は正の値が必要です"))
	}
	if s.WriteWait <= 0 {
		errs = append(errs, errors.New("server.write_wait は正の値が必要です"))
	}
	return invalid(errs)
}

// Validate は通知クライアントの設定値を検証する。
func (c Client) Validate() error {
	var errs []error
	if c.BackoffFloor <= 0 {
		errs = append(errs, errors.New("client.backoff_floor は正の値が必要です"))
	}
	if c.BackoffCeiling < c.BackoffFloor {
		errs = append(errs, errors.New("client.backoff_ceiling は backoff_floor 以上が必要です"))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("client.poll_interval は %s 以上が必要です", MinPollInterval))
	}
	if c.MaxAlerts <= 0 {
		errs = append(errs, errors.New("client.max_alerts は正の値が必要です"))
	}
	return invalid(errs)
}

func invalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// splitList はカンマ区切りの文字列を分割し、空要素を除く。
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
