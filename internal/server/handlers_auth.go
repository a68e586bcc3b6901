package server

import (
	"net/http"

	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"
	"tasklist/internal/service"

	"github.com/gin-gonic/gin"
)

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid user data")
		return
	}
	req.Name = service.NormalizeName(req.Name)
	req.Email = service.NormalizeEmail(req.Email)

	if err := api.validateRequest(req); err != nil {
		api.writeError(ctx, err)
		return
	}

	result, err := api.auth.Register(ctx.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, "user registered successfully", result)
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid request data")
		return
	}
	req.Email = service.NormalizeEmail(req.Email)

	if err := api.validateRequest(req); err != nil {
		api.writeError(ctx, err)
		return
	}

	result, err := api.auth.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, "login successful", result)
}

func (api *TaskAPI) profile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		fail(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return
	}
	respond(ctx, http.StatusOK, "profile retrieved successfully", gin.H{"user": user})
}
