// Package web embeds the single-page UI served at /.
package web

import "embed"

//go:embed index.html
var Files embed.FS
