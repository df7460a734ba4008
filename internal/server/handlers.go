package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"validation-service/internal/apperr"
	"validation-service/internal/logger"
	"validation-service/internal/models"
	"validation-service/internal/orchestrator"
	"validation-service/internal/selector"
	"validation-service/internal/trust"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Core is the orchestrator surface the HTTP layer drives.
type Core interface {
	RequestValidation(ctx context.Context, submitterID, eventType string, eventData []byte, hints orchestrator.Hints) (*orchestrator.ValidationReceipt, error)
	SubmitVote(ctx context.Context, requestID, validatorID string, agrees bool, proof []byte) (*orchestrator.VoteReceipt, error)
	Status(ctx context.Context, requestID string) (*orchestrator.StatusSummary, error)
	Active() []orchestrator.ActiveValidation
}

// TrustReader serves the read-only trust endpoints.
type TrustReader interface {
	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
	GetTrustLeaderboard(ctx context.Context, limit int) ([]models.Player, error)
}

type Handler struct {
	Core   Core
	Trust  TrustReader
	Params trust.Params
	Log    *logger.Logger
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

type locationPayload struct {
	RegionID string   `json:"regionId"`
	BodyID   string   `json:"bodyId"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Z        *float64 `json:"z"`
}

type validationPayload struct {
	PlayerID  string           `json:"playerId"`
	EventType string           `json:"eventType"`
	EventData json.RawMessage  `json:"eventData"`
	Location  *locationPayload `json:"location"`
}

func (h *Handler) RequestValidation(w http.ResponseWriter, r *http.Request) {
	var payload validationPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	hints := orchestrator.Hints{}
	if payload.Location != nil {
		hints.RegionID = payload.Location.RegionID
		hints.BodyID = payload.Location.BodyID
		if payload.Location.X != nil && payload.Location.Y != nil && payload.Location.Z != nil {
			hints.Location = &selector.Location{
				X: *payload.Location.X,
				Y: *payload.Location.Y,
				Z: *payload.Location.Z,
			}
		}
	}

	receipt, err := h.Core.RequestValidation(r.Context(), payload.PlayerID, payload.EventType, payload.EventData, hints)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type votePayload struct {
	ValidatorID string          `json:"validatorId"`
	Agrees      bool            `json:"agrees"`
	Proof       json.RawMessage `json:"proof"`
}

func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	var payload votePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	receipt, err := h.Core.SubmitVote(r.Context(), requestID, payload.ValidatorID, payload.Agrees, payload.Proof)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Core.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) ActiveValidations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": h.Core.Active(),
	})
}

func (h *Handler) PlayerTrust(w http.ResponseWriter, r *http.Request) {
	player, err := h.Trust.GetPlayer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playerId":           player.ID,
		"trustScore":         player.TrustScore,
		"tier":               h.Params.TierOf(player.TrustScore).String(),
		"requiredValidators": h.Params.RequiredValidators(player.TrustScore),
		"submittedCount":     player.SubmittedCount,
		"correctCount":       player.CorrectCount,
		"incorrectCount":     player.IncorrectCount,
	})
}

func (h *Handler) TrustLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			h.writeError(w, apperr.Newf(apperr.KindInvalidInput, "invalid limit %q", raw))
			return
		}
		limit = n
	}

	players, err := h.Trust.GetTrustLeaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type row struct {
		PlayerID   string  `json:"playerId"`
		TrustScore float64 `json:"trustScore"`
		Tier       string  `json:"tier"`
	}
	rows := make([]row, len(players))
	for i, p := range players {
		rows[i] = row{PlayerID: p.ID, TrustScore: p.TrustScore, Tier: h.Params.TierOf(p.TrustScore).String()}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": rows})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindTransient:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		h.Log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": kind.String(),
		"msg":   err.Error(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid_input", "msg": "invalid body"})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid_input", "msg": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
