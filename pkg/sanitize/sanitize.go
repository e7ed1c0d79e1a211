// Package sanitize は信頼できない入力文字列を無害化する関数を提供する。
//
// メールヘッダーのようにCR/LFで区切られる文脈へ利用者の入力を埋め込む前に使用し、
// ヘッダーインジェクション（Bcc行の追加など）を防ぐ。
package sanitize

import "strings"

// controlCharReplacer はCRとLFを取り除くReplacer。
var controlCharReplacer = strings.NewReplacer("\r", "", "\n", "")

// StripControlChars は文字列からすべてのCR（\r）とLF（\n）を取り除く。
// それ以外の文字と並び順はそのまま保持する。
// ヘッダーに埋め込む前に呼び出すこと。埋め込んだ後では意味がない。
func StripControlChars(s string) string {
	return controlCharReplacer.Replace(s)
}
