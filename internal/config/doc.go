// Package config はedgeapiの設定を読み込む。
//
// 設定は既定値、YAMLファイル（任意）、環境変数の順に重ねて読み込み、後のものが優先される。
// 環境変数はプレフィックス EDGEAPI_ を持ち、ネストは "__" で表す。
// 例: EDGEAPI_MAIL__CONTACT_EMAIL は mail.contact_email になる。
// カレントディレクトリに .env があれば起動時に環境変数として読み込まれる。
package config
