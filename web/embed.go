// Package web embeds the OAuth callback page templates and their stylesheet.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

// FS contains the page templates and static assets.
//
//go:embed *.tmpl.html css/*
var FS embed.FS

// Assets is the static asset tree served under /static/.
var Assets fs.FS = mustSub(FS, "css")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// CallbackTemplate parses the shared partials plus the callback page.
func CallbackTemplate() (*template.Template, error) {
	t, err := template.ParseFS(FS, "partials.tmpl.html", "callback.tmpl.html")
	if err != nil {
		return nil, err
	}
	return t.Lookup("callback.tmpl.html"), nil
}
