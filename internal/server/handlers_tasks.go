package server

import (
	"net/http"
	"strconv"
	"strings"

	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"
	"tasklist/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (api *TaskAPI) createTask(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		fail(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return
	}

	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.writeError(ctx, bindingError(err))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := api.validateRequest(req); err != nil {
		api.writeError(ctx, err)
		return
	}

	task, err := api.tasks.Create(ctx.Request.Context(), user.ID, req.Title, req.Description)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, "task created successfully", gin.H{"task": task})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		fail(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return
	}

	opts, err := parseListOptions(ctx)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	page, err := api.tasks.List(ctx.Request.Context(), user.ID, opts)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "tasks retrieved successfully", page)
}

func (api *TaskAPI) getTaskByID(ctx *gin.Context) {
	user, taskID, ok := api.taskScope(ctx)
	if !ok {
		return
	}

	task, err := api.tasks.GetByID(ctx.Request.Context(), user.ID, taskID)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "task retrieved successfully", gin.H{"task": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	user, taskID, ok := api.taskScope(ctx)
	if !ok {
		return
	}

	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.writeError(ctx, bindingError(err))
		return
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			api.writeError(ctx, errors.NewValidationError(errors.FieldError{
				Field:   "title",
				Message: "title cannot be empty",
			}))
			return
		}
		req.Title = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		req.Description = &trimmed
	}
	if err := api.validateRequest(req); err != nil {
		api.writeError(ctx, err)
		return
	}

	task, err := api.tasks.Update(ctx.Request.Context(), user.ID, taskID, models.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "task updated successfully", gin.H{"task": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	user, taskID, ok := api.taskScope(ctx)
	if !ok {
		return
	}

	if err := api.tasks.Delete(ctx.Request.Context(), user.ID, taskID); err != nil {
		api.writeError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, "task deleted successfully", nil)
}

func (api *TaskAPI) toggleTask(ctx *gin.Context) {
	user, taskID, ok := api.taskScope(ctx)
	if !ok {
		return
	}

	task, err := api.tasks.ToggleCompletion(ctx.Request.Context(), user.ID, taskID)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	state := "pending"
	if task.Completed {
		state = "completed"
	}
	respond(ctx, http.StatusOK, "task marked as "+state, gin.H{"task": task})
}

// taskScope returns the authenticated user and a well-formed task id, writing
// the error response itself when either is missing.
func (api *TaskAPI) taskScope(ctx *gin.Context) (*models.User, string, bool) {
	user, ok := currentUser(ctx)
	if !ok {
		fail(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return nil, "", false
	}

	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		api.writeError(ctx, errors.NewValidationError(errors.FieldError{
			Field:   "id",
			Message: "invalid task id",
			Value:   id,
		}))
		return nil, "", false
	}
	return user, id, true
}

func parseListOptions(ctx *gin.Context) (models.ListOptions, error) {
	opts := service.DefaultListOptions()
	verr := errors.NewValidationError()

	if v, ok := ctx.GetQuery("page"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("page", "page must be an integer greater than 0", v)
		} else {
			opts.Page = n
		}
	}
	if v, ok := ctx.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("limit", "limit must be an integer between 1 and 100", v)
		} else {
			opts.Limit = n
		}
	}
	if v, ok := ctx.GetQuery("sortBy"); ok {
		opts.SortBy = v
	}
	if v, ok := ctx.GetQuery("sortOrder"); ok {
		opts.SortOrder = v
	}

	return opts, verr.OrNil()
}
