package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"custseg/app"
)

//go:embed templates/*.html static/*
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/*.html"))

// Handlers serves the dashboard page, the charts and the prediction form.
type Handlers struct {
	app    *app.App
	log    *zap.Logger
	static http.Handler
}

func NewHandlers(a *app.App, log *zap.Logger) (*Handlers, error) {
	if a == nil || a.Dashboard == nil || a.Predictor == nil {
		return nil, errors.New("handlers need a built app")
	}
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}
	return &Handlers{
		app:    a,
		log:    log,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
	}, nil
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleDashboard)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /charts/{chart}", h.handleChart)
	mux.Handle("GET /static/", h.static)
	mux.HandleFunc("GET /healthz", handleHealth)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// render executes the page into a buffer first so template failures still produce a clean 500.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
