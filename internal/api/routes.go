package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", h.Catalog)
		r.Post("/scan", h.Scan)
		r.Post("/documents", h.IssueDocument)
		r.Get("/documents", h.ListDocuments)
		r.Route("/documents/{documentId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
				h.GetHistory(w, r, chi.URLParam(r, "documentId"))
			})
			r.Get("/qr", func(w http.ResponseWriter, r *http.Request) {
				h.GetQRCode(w, r, chi.URLParam(r, "documentId"))
			})
			r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
				h.CancelDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Post("/archive", func(w http.ResponseWriter, r *http.Request) {
				h.ArchiveDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Post("/image", func(w http.ResponseWriter, r *http.Request) {
				h.UploadImage(w, r, chi.URLParam(r, "documentId"))
			})
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
