package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
	"github.com/BuzzLyutic/kanban-sync/internal/service"
	"github.com/BuzzLyutic/kanban-sync/pkg/respond"
)

type BoardHandler struct {
	service *service.BoardService
	logger  *zap.Logger
}

func NewBoardHandler(srv *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *BoardHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req model.User
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.SignIn(r.Context(), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, state)
}

func (h *BoardHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut()
	respond.NoContent(w, r)
}

func (h *BoardHandler) State(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, h.service.State())
}

func (h *BoardHandler) UpdateUI(w http.ResponseWriter, r *http.Request) {
	var req service.UIInput
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.UpdateUI(req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, state)
}

func (h *BoardHandler) Pending(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, h.service.Pending())
}

func (h *BoardHandler) Flush(w http.ResponseWriter, r *http.Request) {
	result := h.service.Flush(r.Context())
	respond.JSON(w, r, http.StatusOK, result)
}

func (h *BoardHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (h *BoardHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	return true
}

func (h *BoardHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		respond.Error(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	default:
		h.logger.Error("internal error", zap.Error(err), zap.String("path", r.URL.Path))
		respond.Error(w, r, http.StatusInternalServerError, "internal server error")
	}
}
