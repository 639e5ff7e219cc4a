package webassets

import (
	"embed"
)

// Bundled control panel. Served when no asset directory exists on disk.
//
//go:embed public
var FS embed.FS
