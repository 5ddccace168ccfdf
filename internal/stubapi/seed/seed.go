// Package seed embeds the stub server's initial dataset.
package seed

import "embed"

// FS contains the embedded seed data files.
//
//go:embed coins.json tips.json
var FS embed.FS
