// Package appfs holds the embedded assets shipped with the binaries:
// database migrations, email templates and data files.
package appfs

import "embed"

//go:embed migrations
var Migrations embed.FS

// all: is required so the _-prefixed base templates are embedded too.
//
//go:embed all:assets
var Assets embed.FS
