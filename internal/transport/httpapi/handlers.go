package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"envoy.ai/internal/sim/model"
)

const adminTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func playerParam(r *http.Request) (model.PlayerID, bool) {
	return idParam(r, "id")
}

func idParam(r *http.Request, name string) (model.PlayerID, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, false
	}
	return model.PlayerID(n), true
}

func pairParams(r *http.Request) (model.PlayerID, model.PlayerID, bool) {
	a, ok := idParam(r, "id")
	if !ok {
		return 0, 0, false
	}
	b, ok := idParam(r, "other")
	return a, b, ok
}

func (h *handlers) listTreaties(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	ts, err := h.sess.ListTreaties(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treaties": ts, "count": len(ts)})
}

func (h *handlers) playerInfo(w http.ResponseWriter, r *http.Request) {
	p, ok := playerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad player id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	info, found, err := h.sess.PlayerInfo(ctx, p)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no such player")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) eliminate(w http.ResponseWriter, r *http.Request) {
	p, ok := playerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad player id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	done, err := h.sess.Eliminate(ctx, p)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !done {
		writeError(w, http.StatusConflict, "player unknown or already eliminated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "player_id": int(p)})
}

func (h *handlers) establishEmbassy(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, h.sess.EstablishEmbassy, "embassy exists or bad players")
}

func (h *handlers) makeContact(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, h.sess.MakeContact, "players unknown or not alive")
}

func (h *handlers) pairAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, model.PlayerID, model.PlayerID) (bool, error), conflict string) {
	a, b, ok := pairParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad player id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	done, err := fn(ctx, a, b)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !done {
		writeError(w, http.StatusConflict, conflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "player_id": int(a), "other": int(b)})
}

func (h *handlers) advanceTurn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	turn, err := h.sess.AdvanceTurn(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "turn": turn})
}

func (h *handlers) playerHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "history index disabled")
		return
	}
	player, err := strconv.Atoi(r.URL.Query().Get("player"))
	if err != nil || player < 0 {
		writeError(w, http.StatusBadRequest, "bad player")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	hist, err := h.history.History(ctx, player, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player": player, "treaties": hist})
}

func (h *handlers) treatyEvents(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "history index disabled")
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	evs, err := h.history.Events(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(evs) == 0 {
		writeError(w, http.StatusNotFound, "no such treaty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treaty_id": id, "events": evs})
}
