// Package httpapi exposes the game commands as a JSON-over-HTTP surface.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/Plabrum/trackstar/internal/game/api/ws"
	"github.com/Plabrum/trackstar/internal/game/auth"
	"github.com/Plabrum/trackstar/internal/game/service"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// Handler serves the command surface.
type Handler struct {
	svc    *service.Service
	tokens auth.Config
	events *ws.Handler
	logger *log.Logger
}

// NewHandler wires the orchestrator behind the HTTP routes.
func NewHandler(svc *service.Service, tokens auth.Config, events *ws.Handler, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: svc, tokens: tokens, events: events, logger: logger}
}

// Router builds the route table.
func (h *Handler) Router() http.Handler {
	router := httprouter.New()

	router.GET("/healthz", h.health)
	router.GET("/v1/packs", h.listPacks)

	router.POST("/v1/sessions", h.createSession)
	router.POST("/v1/sessions/:id/players", h.joinSession)
	router.GET("/v1/sessions/:id", h.authorized(h.getState))
	router.POST("/v1/sessions/:id/start", h.authorized(h.startGame))
	router.POST("/v1/sessions/:id/buzz", h.authorized(h.buzz))
	router.POST("/v1/sessions/:id/answers", h.authorized(h.submitAnswer))
	router.POST("/v1/sessions/:id/judge", h.authorized(h.judgeAnswer))
	router.POST("/v1/sessions/:id/finalize", h.authorized(h.finalizeJudgments))
	router.POST("/v1/sessions/:id/reveal", h.authorized(h.reveal))
	router.POST("/v1/sessions/:id/advance", h.authorized(h.advanceRound))
	router.POST("/v1/sessions/:id/reset", h.authorized(h.resetGame))
	router.POST("/v1/sessions/:id/end", h.authorized(h.endGame))

	if h.events != nil {
		router.GET("/v1/sessions/:id/events", h.events.Subscribe)
	}

	return router
}

// actorHandle is a route handler that runs with an authenticated actor.
type actorHandle func(w http.ResponseWriter, r *http.Request, actor service.Actor)

// authorized verifies the Bearer token and binds it to the path's session.
func (h *Handler) authorized(next actorHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		token := bearerToken(r)
		claims, err := auth.Verify(token, h.tokens)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if claims.SessionID != params.ByName("id") {
			h.writeError(w, apperrors.New(apperrors.CodeTokenInvalid, "token does not match this session"))
			return
		}
		next(w, r, service.Actor{
			SessionID: claims.SessionID,
			PlayerID:  claims.PlayerID,
			Role:      claims.Role,
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPacks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	packs, err := h.svc.ListPacks(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"packs": packs})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input service.CreateSessionInput
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	creds, err := h.svc.CreateSession(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, creds)
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var input struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	creds, err := h.svc.JoinSession(r.Context(), params.ByName("id"), input.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, creds)
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.GetState(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.StartGame(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) buzz(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.Buzz(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	var input struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.SubmitAnswer(r.Context(), actor, input.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) judgeAnswer(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	var input struct {
		Correct bool `json:"correct"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.JudgeAnswer(r.Context(), actor, input.Correct)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) finalizeJudgments(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	var input struct {
		Overrides map[string]bool `json:"overrides"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.FinalizeJudgments(r.Context(), actor, input.Overrides)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) reveal(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.Reveal(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) advanceRound(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.AdvanceRound(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) resetGame(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	var input struct {
		PackID string `json:"pack_id"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.ResetGame(r.Context(), actor, input.PackID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) endGame(w http.ResponseWriter, r *http.Request, actor service.Actor) {
	snap, err := h.svc.EndGame(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// decodeBody parses a JSON request body. An empty body decodes to zero values
// so bodyless commands stay valid.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !stderrors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.CodeBadRequest, "request body is not valid JSON", err)
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	message := "internal error"
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request failed: %v", err)
		message = "internal error"
	}

	h.writeJSON(w, status, errorBody{Code: string(code), Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("encode response: %v", err)
	}
}
