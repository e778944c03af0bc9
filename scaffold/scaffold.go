// Package scaffold holds the starter files written by "spacetraveling init".
package scaffold

import "embed"

// Templates contains the starter files. They use Go text/template syntax and
// have a .tmpl suffix; "dotenv" is written as ".env.example".
//
//go:embed all:templates
var Templates embed.FS
