// Package migrations はスキーマ定義の SQL を埋め込みます。
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
