package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/bigshort-one/bigshort/internal/database"
	"github.com/bigshort-one/bigshort/internal/models"
	"github.com/bigshort-one/bigshort/internal/pool"
	"github.com/bigshort-one/bigshort/internal/validation"
	"github.com/bigshort-one/bigshort/pkg/response"
)

// defaultListLimit bounds the recent URL listing.
const defaultListLimit = 100

// shortenRequest represents the request payload for creating a shortened URL.
type shortenRequest struct {
	URL        string `json:"url" validate:"required,url"`
	CustomCode string `json:"custom_code,omitempty" validate:"omitempty,min=8,max=16"`
	IsPublic   bool   `json:"is_public,omitempty"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ID            int64      `json:"id"`
	ShortCode     string     `json:"short_code"`
	ShortURL      string     `json:"short_url"`
	URL           string     `json:"url"`
	IsCustom      bool       `json:"is_custom"`
	IsPublic      bool       `json:"is_public"`
	Clicks        int64      `json:"clicks"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// toURLResponse converts a URL model from the business layer into a response payload.
func toURLResponse(url *models.URL, baseURL string) urlResponse {
	return urlResponse{
		ID:            url.ID,
		ShortCode:     url.ShortCode,
		ShortURL:      strings.TrimSuffix(baseURL, "/") + "/" + url.ShortCode,
		URL:           url.OriginalURL,
		IsCustom:      url.IsCustom,
		IsPublic:      url.IsPublic,
		Clicks:        url.Clicks,
		LastClickedAt: url.LastClickedAt,
		CreatedAt:     url.CreatedAt,
	}
}

// clientMetadataFromRequest captures who created a link, for the record's
// metadata column. RemoteAddr is already rewritten by the RealIP middleware.
func clientMetadataFromRequest(r *http.Request) models.ClientMetadata {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return models.ClientMetadata{
		UserAgent:     r.UserAgent(),
		IPAddress:     ip,
		Referrer:      r.Referer(),
		Platform:      r.Header.Get("Sec-Ch-Ua-Platform"),
		SecChUA:       r.Header.Get("Sec-Ch-Ua"),
		SecChUAMobile: r.Header.Get("Sec-Ch-Ua-Mobile"),
	}
}

// handlePing handles health check requests to ensure the server and its
// backing stores are running.
func handlePing(svc URLService) http.HandlerFunc {
	const op = "api.http.handlePing"

	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "pong")
	}
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The request must contain a valid URL and may carry a custom short code.
// The handler validates the input, calls the URL shortening service, and
// returns the short code with relevant metadata.
func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		meta := clientMetadataFromRequest(r)

		url, err := svc.Shorten(r.Context(), req.URL, req.CustomCode, req.IsPublic, meta)
		if err != nil {
			var rejErr *validation.RejectionError

			switch {
			case errors.As(err, &rejErr):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.RejectedResponse(rejErr.Reason))
			case errors.Is(err, pool.ErrCodeTaken) || errors.Is(err, database.ErrShortCodeExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeConflictResponse)
			case errors.Is(err, pool.ErrExhausted):
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.PoolExhaustedResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url, baseURL)))
	}
}

// handleRedirect handles GET requests on short links, sending the visitor
// to the original URL. Rejected and unknown codes both answer 404: the
// visitor followed a link, and the only useful fact is that it leads nowhere.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		target, err := svc.Resolve(r.Context(), shortCode)
		if err != nil {
			var rejErr *validation.RejectionError

			if errors.As(err, &rejErr) || errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}

// handleURLStats handles GET requests for the statistics of a short link.
//
// The handler fetches the URL record with its click counter. The read does
// not count as a visit.
func handleURLStats(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleURLStats"
	const successMsg = "The URL stats were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.Stats(r.Context(), shortCode)
		if err != nil {
			var rejErr *validation.RejectionError

			switch {
			case errors.As(err, &rejErr):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.RejectedResponse(rejErr.Reason))
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url, baseURL)))
	}
}

// handleListURLs handles GET requests for the most recently created URLs.
func handleListURLs(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "The URLs were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}
			limit = parsed
		}

		urls, err := svc.RecentURLs(r.Context(), limit)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		resp := make([]urlResponse, 0, len(urls))
		for _, url := range urls {
			resp = append(resp, toURLResponse(url, baseURL))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, resp))
	}
}
