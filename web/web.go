// Package web holds the HTML templates compiled into the binary.
package web

import "embed"

// Views contains the django templates under views/.
//
//go:embed views
var Views embed.FS
