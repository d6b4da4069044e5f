// Package webassets embeds the static files for the report viewer.
package webassets

import "embed"

//go:embed index.html
var Assets embed.FS
