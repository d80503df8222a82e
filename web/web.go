// Package web embeds the HTML views rendered by the handlers.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed views
var files embed.FS

// Views returns the template engine over the embedded views directory.
func Views() *html.Engine {
	views, err := fs.Sub(files, "views")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return html.NewFileSystem(http.FS(views), ".html")
}
