// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

// FS holds the email templates. The glob is explicit so the "_" layouts are embedded too.
//go:embed templates/email/*
var FS embed.FS
