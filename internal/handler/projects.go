package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/service"
	"github.com/BuzzLyutic/kanban-sync/pkg/respond"
)

func (h *BoardHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.Projects()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, projects)
}

func (h *BoardHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProjectInput
	if !h.decode(w, r, &req) {
		return
	}

	project, err := h.service.CreateProject(req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/projects/%s", project.ID))
	respond.JSON(w, r, http.StatusCreated, project)
}

func (h *BoardHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var body patchBody
	if !h.decode(w, r, &body) {
		return
	}
	patch, err := h.projectPatch(body)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.service.UpdateProject(chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, project)
}

// ProjectTasks lists a project's tasks, optionally narrowed by the q,
// assignee and priority query parameters.
func (h *BoardHandler) ProjectTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.TaskQuery{
		Query:    q.Get("q"),
		Assignee: q.Get("assignee"),
		Priority: model.Priority(q.Get("priority")),
	}

	tasks, err := h.service.Tasks(chi.URLParam(r, "id"), query)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *BoardHandler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *BoardHandler) SharedBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.SharedBoard(chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, board)
}
