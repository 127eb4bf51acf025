package handlers

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
)

//go:embed views/index.html
var views embed.FS

type index struct {
	page []byte
}

// newIndex renders the page once since its content only depends on the
// configuration.
func newIndex(build string, nodeHost string) (index, error) {
	tmpl, err := template.ParseFS(views, "views/index.html")
	if err != nil {
		return index{}, err
	}

	data := struct {
		Build    string
		NodeHost string
	}{
		Build:    build,
		NodeHost: nodeHost,
	}

	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return index{}, err
	}

	return index{page: b.Bytes()}, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(ig.page)
	return err
}
