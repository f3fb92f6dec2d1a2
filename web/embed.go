// ABOUTME: Embeds the dashboard page template for serving via the HTTP server.
// ABOUTME: Uses go:embed so the binary carries its own UI with zero runtime path issues.
package web

import "embed"

//go:embed templates/*.html
var templateFS embed.FS
