package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/bigshort-one/bigshort/internal/models"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// Shorten creates a short code for the original URL. A non-empty
	// customCode claims that code instead of drawing one from the pool.
	Shorten(ctx context.Context, originalURL, customCode string, isPublic bool, meta models.ClientMetadata) (*models.URL, error)

	// Resolve maps a short code to its target URL and counts the visit.
	Resolve(ctx context.Context, rawCode string) (string, error)

	// Stats retrieves the URL record for a short code without counting a visit.
	Stats(ctx context.Context, rawCode string) (*models.URL, error)

	// RecentURLs lists the most recently created URL records.
	RecentURLs(ctx context.Context, limit int) ([]*models.URL, error)

	// Ping verifies that the backing stores are reachable.
	Ping(ctx context.Context) error
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
//
// baseURL is the public prefix short links are served under; it only shapes
// the short_url field in responses.
func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing(urlSvc))
		r.Get("/urls", handleListURLs(urlSvc, baseURL))

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate, baseURL))
			r.Get("/{shortCode}/stats", handleURLStats(urlSvc, baseURL))
		})
	})

	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
