// Package config は通知サービスと通知クライアントの設定を読み込む。
//
// 埋め込みの default.yaml を基にし、任意の設定ファイル、環境変数の順で上書きしてから検証する。
package config
