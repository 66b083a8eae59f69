package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// envMap はテスト用の環境変数ルックアップを作る。
func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// TestDefault は埋め込みの既定設定を検証する。
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default()でエラーが発生: %v", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		t.Fatalf("既定のサーバー設定が検証を通らない: %v", err)
	}
	if err := cfg.Client.Validate(); err != nil {
		t.Fatalf("既定のクライアント設定が検証を通らない: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Server.Port, "8086"},
		{"heartbeat_interval", cfg.Server.HeartbeatInterval, 30 * time.Second},
		{"write_wait", cfg.Server.WriteWait, 10 * time.Second},
		{"backoff_floor", cfg.Client.BackoffFloor, 2 * time.Second},
		{"backoff_ceiling", cfg.Client.BackoffCeiling, 60 * time.Second},
		{"poll_interval", cfg.Client.PollInterval, 15 * time.Minute},
		{"max_alerts", cfg.Client.MaxAlerts, 3},
		{"ws_url", cfg.Client.WSURL, "ws://localhost:8086/ws"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

// TestParse はYAMLの上書きを検証する。
func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("指定したキーだけが上書きされること", func(t *testing.T) {
		t.Parallel()

		cfg, err := Parse([]byte("server:\n  port: \"9000\"\nclient:\n  backoff_ceiling: 2m\n"))
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if cfg.Server.Port != "9000" {
			t.Errorf("port: got %s, want 9000", cfg.Server.Port)
		}
		if cfg.Client.BackoffCeiling != 2*time.Minute {
			t.Errorf("backoff_ceiling: got %v, want 2m", cfg.Client.BackoffCeiling)
		}
		if cfg.Server.JWTSecret != "dev-secret-key" {
			t.Errorf("jwt_secret: got %s, want dev-secret-key", cfg.Server.JWTSecret)
		}
	})

	t.Run("不正なYAMLはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Parse([]byte("server: [")); err == nil {
			t.Error("不正なYAMLでエラーが返るべき")
		}
	})
}

// TestApplyEnv は環境変数による上書きを検証する。
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("環境変数が設定値を上書きすること", func(t *testing.T) {
		t.Parallel()

		cfg, err := Default()
		if err != nil {
			t.Fatalf("Default()でエラーが発生: %v", err)
		}
		err = cfg.ApplyEnv(envMap(map[string]string{
			"PORT":               "9999",
			"JWT_SECRET":         "prod-secret",
			"HEARTBEAT_INTERVAL": "5s",
			"WS_URL":             "wss://example.com/ws",
			"AUTH_TOKEN":         "token-abc",
			"ALLOWED_ORIGINS":    "https://a.example.com, https://b.example.com,",
			"MAX_ALERTS":         "5",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv()でエラーが発生: %v", err)
		}

		if cfg.Server.Port != "9999" {
			t.Errorf("port: got %s, want 9999", cfg.Server.Port)
		}
		if cfg.Server.JWTSecret != "prod-secret" {
			t.Errorf("jwt_secret: got %s, want prod-secret", cfg.Server.JWTSecret)
		}
		if cfg.Server.HeartbeatInterval != 5*time.Second {
			t.Errorf("heartbeat_interval: got %v, want 5s", cfg.Server.HeartbeatInterval)
		}
		if cfg.Client.WSURL != "wss://example.com/ws" {
			t.Errorf("ws_url: got %s", cfg.Client.WSURL)
		}
		if cfg.Client.Token != "token-abc" {
			t.Errorf("token: got %s, want token-abc", cfg.Client.Token)
		}
		if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
			t.Errorf("allowed_origins: got %v", cfg.Server.AllowedOrigins)
		}
		if cfg.Client.MaxAlerts != 5 {
			t.Errorf("max_alerts: got %d, want 5", cfg.Client.MaxAlerts)
		}
	})

	t.Run("空の環境変数は無視されること", func(t *testing.T) {
		t.Parallel()

		cfg, _ := Default()
		if err := cfg.ApplyEnv(envMap(map[string]string{"PORT": ""})); err != nil {
			t.Fatalf("ApplyEnv()でエラーが発生: %v", err)
		}
		if cfg.Server.Port != "8086" {
			t.Errorf("port: got %s, want 8086", cfg.Server.Port)
		}
	})

	t.Run("不正な期間はエラーになること", func(t *testing.T) {
		t.Parallel()

		cfg, _ := Default()
		err := cfg.ApplyEnv(envMap(map[string]string{"HEARTBEAT_INTERVAL": "soon"}))
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("got %v, want ErrInvalid", err)
		}
	})

	t.Run("不正なMAX_ALERTSはエラーになること", func(t *testing.T) {
		t.Parallel()

		cfg, _ := Default()
		err := cfg.ApplyEnv(envMap(map[string]string{"MAX_ALERTS": "many"}))
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("got %v, want ErrInvalid", err)
		}
	})
}

// TestValidate は設定値の検証を確認する。
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		modify    func(*Config)
		badServer bool
		badClient bool
	}{
		{"ポートが空", func(c *Config) { c.Server.Port = "" }, true, false},
		{"秘密鍵が空", func(c *Config) { c.Server.JWTSecret = "" }, true, false},
		{"生存確認間隔が0", func(c *Config) { c.Server.HeartbeatInterval = 0 }, true, false},
		{"書き込み期限が負", func(c *Config) { c.Server.WriteWait = -time.Second }, true, false},
		{"待ち時間の初期値が0", func(c *Config) { c.Client.BackoffFloor = 0 }, false, true},
		{"上限が初期値未満", func(c *Config) { c.Client.BackoffCeiling = time.Second }, false, true},
		{"ポーリング間隔が1分未満", func(c *Config) { c.Client.PollInterval = 30 * time.Second }, false, true},
		{"表示件数が0", func(c *Config) { c.Client.MaxAlerts = 0 }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Default()
			if err != nil {
				t.Fatalf("Default()でエラーが発生: %v", err)
			}
			tt.modify(cfg)

			// 各セクションの検証は他方のセクションの値に影響されない
			err = cfg.Server.Validate()
			if got := errors.Is(err, ErrInvalid); got != tt.badServer {
				t.Errorf("Server.Validate(): got %v, want invalid=%v", err, tt.badServer)
			}
			err = cfg.Client.Validate()
			if got := errors.Is(err, ErrInvalid); got != tt.badClient {
				t.Errorf("Client.Validate(): got %v, want invalid=%v", err, tt.badClient)
			}
		})
	}
}

// TestLoad はファイルからの読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Run("設定ファイルと環境変数が反映されること", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: \"7000\"\n  jwt_secret: from-file\n"), 0o600); err != nil {
			t.Fatalf("設定ファイルの作成に失敗: %v", err)
		}
		t.Setenv("JWT_SECRET", "from-env")
		t.Setenv("PORT", "")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Server.Port != "7000" {
			t.Errorf("port: got %s, want 7000", cfg.Server.Port)
		}
		if cfg.Server.JWTSecret != "from-env" {
			t.Errorf("jwt_secret: got %s, want from-env", cfg.Server.JWTSecret)
		}
	})

	t.Run("クライアント設定の誤りはサーバー設定の検証に影響しないこと", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "30s")
		t.Setenv("PORT", "")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if err := cfg.Server.Validate(); err != nil {
			t.Errorf("Server.Validate(): got %v, want nil", err)
		}
		if err := cfg.Client.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Client.Validate(): got %v, want ErrInvalid", err)
		}
	})

	t.Run("存在しないファイルはエラーになること", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("存在しないファイルでエラーが返るべき")
		}
	})
}
