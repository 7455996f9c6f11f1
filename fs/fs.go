// Package appfs embeds the assets shipped with the binaries: local cache migrations and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS
