// Package web holds the HTML templates, embedded into the binary so the
// server does not depend on its working directory to render pages.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
