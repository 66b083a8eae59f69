// Package notification は通知サービスの内部実装を提供する。
//
// 通知をSQLiteに永続化してから、ユーザーのライブ接続へ配信する。
// 通知の一覧取得や既読管理のREST API、ライブチャネルのエンドポイント、
// ヘルスチェックとメトリクスを1つのHTTPサーバーで提供する。
package notification
