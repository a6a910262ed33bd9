// Package appfs embeds app assets needed at runtime (DB migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
