// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// アクセストークンの検証、リクエストIDの付与、zerologによるリクエストログ、
// パニックリカバリ、CORS設定を含む。
package middleware
