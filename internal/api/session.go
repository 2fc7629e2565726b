// Package api exposes the running session to display consumers over a local
// HTTP API and an MCP server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/20223096/mbti-app/internal/conversation"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/storage"
	"github.com/20223096/mbti-app/internal/traits"
)

// Session is the pipeline surface the API drives. Implemented by
// *pipeline.Pipeline.
type Session interface {
	Submit(ctx context.Context, text string) (pipeline.TurnResult, error)
	Reset() error
	SetSelection(sel pipeline.Selection) error
	Status() pipeline.Status
	Messages() []conversation.Turn
	Profile() *traits.Profile
}

// ExchangeReader reads the exchange journal. Implemented by storage.Store.
type ExchangeReader interface {
	ListExchanges(limit, offset int) ([]storage.Exchange, error)
	GetExchange(id string) (storage.Exchange, error)
}

type SessionDeps struct {
	Session   Session
	Exchanges ExchangeReader // optional; /exchanges is not mounted when nil
	Metrics   http.Handler   // optional; /metrics is not mounted when nil
}

type messageRequest struct {
	Text string `json:"text" validate:"max=8000"`
}

type selectionRequest struct {
	MBTI              string `json:"mbti" validate:"omitempty,max=16"`
	RelationshipType  string `json:"relationship_type" validate:"omitempty,max=64"`
	RelationshipState string `json:"relationship_state" validate:"omitempty,max=64"`
}

// sessionView is the full display state in one document.
type sessionView struct {
	Status   pipeline.Status     `json:"status"`
	Messages []conversation.Turn `json:"messages"`
	Profile  *traits.Profile     `json:"traits_profile"`
}

var requestValidate = validator.New()

func NewSessionHandler(deps SessionDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/session", handleGetSession(deps))
	r.Post("/session/messages", handlePostMessage(deps))
	r.Put("/session/selection", handlePutSelection(deps))
	r.Post("/session/reset", handleReset(deps))
	r.Get("/session/profile", handleGetProfile(deps))

	if deps.Exchanges != nil {
		r.Get("/exchanges", handleListExchanges(deps))
		r.Get("/exchanges/{id}", handleGetExchange(deps))
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

func currentView(s Session) sessionView {
	return sessionView{
		Status:   s.Status(),
		Messages: s.Messages(),
		Profile:  s.Profile(),
	}
}

func handleGetSession(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentView(deps.Session))
	}
}

func handlePostMessage(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := requestValidate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		// The turn outlives a client that hangs up mid-request.
		res, err := deps.Session.Submit(context.WithoutCancel(r.Context()), req.Text)
		switch {
		case errors.Is(err, pipeline.ErrEmptyMessage):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text must not be empty")
			return
		case errors.Is(err, pipeline.ErrBusy):
			httpError(w, http.StatusConflict, "busy", "a message is already being sent")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "submit failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func handlePutSelection(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req selectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := requestValidate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		err := deps.Session.SetSelection(pipeline.Selection{
			Label:             req.MBTI,
			RelationshipType:  req.RelationshipType,
			RelationshipState: req.RelationshipState,
		})
		if errors.Is(err, pipeline.ErrBusy) {
			httpError(w, http.StatusConflict, "busy", "cannot change selection while a message is being sent")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to set selection: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, currentView(deps.Session))
	}
}

func handleReset(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Session.Reset()
		if errors.Is(err, pipeline.ErrBusy) {
			httpError(w, http.StatusConflict, "busy", "cannot reset while a message is being sent")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reset failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, currentView(deps.Session))
	}
}

func handleGetProfile(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Profile())
	}
}

func handleListExchanges(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		exchanges, err := deps.Exchanges.ListExchanges(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list exchanges: %v", err)
			return
		}
		if exchanges == nil {
			exchanges = []storage.Exchange{}
		}
		writeJSON(w, http.StatusOK, exchanges)
	}
}

func handleGetExchange(deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		e, err := deps.Exchanges.GetExchange(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "exchange not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get exchange: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
