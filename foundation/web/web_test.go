package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/siertrichain/siertrichain/foundation/web"
)

func TestHandle(t *testing.T) {
	var order []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown, mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if web.GetTraceID(ctx) == "" {
			return errors.New("missing trace id")
		}

		resp := struct {
			Name string `json:"name"`
		}{
			Name: web.Param(r, "name"),
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
	app.Handle(http.MethodGet, "v1", "/hello/:name", h, mw("route"))

	r := httptest.NewRequest(http.MethodGet, "/v1/hello/siertri", nil)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Should get a 200: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"siertri"`) {
		t.Fatalf("Should get the route parameter back: got %s", w.Body.String())
	}
	if len(order) != 2 || order[0] != "app" || order[1] != "route" {
		t.Fatalf("Should run app middleware before route middleware: got %v", order)
	}
}

func TestShutdownError(t *testing.T) {
	err := web.NewShutdownError("integrity issue")

	if !web.IsShutdown(err) {
		t.Fatal("Should identify a shutdown error.")
	}
	if web.IsShutdown(errors.New("integrity issue")) {
		t.Fatal("Should not identify a plain error as a shutdown error.")
	}
}
