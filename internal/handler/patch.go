package handler

import (
	"encoding/json"
	"fmt"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
)

// Patch bodies are JSON objects where a present key sets the field and an
// explicit null clears a nullable one. Absent keys are left alone.

type patchBody map[string]json.RawMessage

func (b patchBody) take(key string, dst any) (bool, error) {
	raw, ok := b[key]
	if !ok {
		return false, nil
	}
	delete(b, key)
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

func field[T any](b patchBody, key string, dst *model.Field[T]) error {
	var v T
	ok, err := b.take(key, &v)
	if err != nil || !ok {
		return err
	}
	*dst = model.Set(v)
	return nil
}

func (b patchBody) rest() error {
	for key := range b {
		return fmt.Errorf("unknown field %q", key)
	}
	return nil
}

func (h *BoardHandler) taskPatch(b patchBody) (model.TaskPatch, error) {
	var p model.TaskPatch
	for _, err := range []error{
		field(b, "title", &p.Title),
		field(b, "description", &p.Description),
		field(b, "status", &p.Status),
		field(b, "priority", &p.Priority),
		field(b, "dueDate", &p.DueDate),
		field(b, "tags", &p.Tags),
		field(b, "checklist", &p.Checklist),
		field(b, "comments", &p.Comments),
		field(b, "order", &p.Order),
	} {
		if err != nil {
			return p, err
		}
	}

	var assigneeID *string
	ok, err := b.take("assigneeId", &assigneeID)
	if err != nil {
		return p, err
	}
	if ok {
		if assigneeID == nil || *assigneeID == "" {
			p.Assignee = model.Set[*model.User](nil)
		} else {
			u, err := h.service.User(*assigneeID)
			if err != nil {
				return p, fmt.Errorf("assigneeId: %w", err)
			}
			p.Assignee = model.Set(&u)
		}
	}
	return p, b.rest()
}

func (h *BoardHandler) projectPatch(b patchBody) (model.ProjectPatch, error) {
	var p model.ProjectPatch
	for _, err := range []error{
		field(b, "name", &p.Name),
		field(b, "description", &p.Description),
		field(b, "status", &p.Status),
		field(b, "priority", &p.Priority),
		field(b, "color", &p.Color),
		field(b, "startDate", &p.StartDate),
		field(b, "endDate", &p.EndDate),
	} {
		if err != nil {
			return p, err
		}
	}

	var memberIDs []string
	ok, err := b.take("memberIds", &memberIDs)
	if err != nil {
		return p, err
	}
	if ok {
		members := make([]model.User, 0, len(memberIDs))
		for _, id := range memberIDs {
			u, err := h.service.User(id)
			if err != nil {
				return p, fmt.Errorf("memberIds: %w", err)
			}
			members = append(members, u)
		}
		p.Members = model.Set(members)
	}
	return p, b.rest()
}
