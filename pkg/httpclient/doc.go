// Package httpclient は通知APIを呼び出すJSON HTTPクライアントを提供する。
//
// クライアント側のポーリング（未読通知の取得）で使用する。
// アクセストークンはコンテキスト経由で渡し、Bearer認証ヘッダーとして付与する。
package httpclient
