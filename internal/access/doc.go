// Package access はIDプロバイダー（Cloudflare Access）が発行したアクセストークンを検証する。
//
// リクエストヘッダーのトークンを、チームドメインから導出した公開鍵セット（JWKS）と
// 発行者・オーディエンスのポリシーで検証し、Authorized か Unauthorized のどちらかを返す。
// 失敗理由はサーバー側のログ用にのみ保持し、呼び出し元のレスポンスには区別を出さない。
package access
