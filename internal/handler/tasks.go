package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/service"
	"github.com/BuzzLyutic/kanban-sync/pkg/respond"
)

type moveRequest struct {
	Status model.TaskStatus `json:"status"`
	Order  int              `json:"order"`
}

type reorderRequest struct {
	TargetID string           `json:"targetId"`
	Status   model.TaskStatus `json:"status"`
}

func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskInput
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.service.CreateTask(req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%s", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *BoardHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Task(chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var body patchBody
	if !h.decode(w, r, &body) {
		return
	}
	patch, err := h.taskPatch(body)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.UpdateTask(chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.service.MoveTask(chi.URLParam(r, "id"), req.Status, req.Order)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) ReorderTask(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.service.ReorderTask(chi.URLParam(r, "id"), req.TargetID, req.Status)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTask(chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.NoContent(w, r)
}
