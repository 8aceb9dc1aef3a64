package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"situationcord.app/relay/internal/http/dto"
	"situationcord.app/relay/internal/service"
)

type IgnoredUserHandler struct {
	service service.IgnoreService
}

func NewIgnoredUserHandler(service service.IgnoreService) *IgnoredUserHandler {
	return &IgnoredUserHandler{service: service}
}

func (h *IgnoredUserHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list ignored users", "error", err)
		c.JSON(http.StatusInternalServerError, dto.Error("failed to list ignored users"))
		return
	}

	resp := dto.ListIgnoredUsersResponse{Success: true, Users: make([]dto.IgnoredUserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, dto.ToIgnoredUserResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *IgnoredUserHandler) Add(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AddIgnoredUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	user, err := h.service.Add(ctx, service.IgnoreUserParams{
		UserID:    req.UserID,
		Reason:    req.Reason,
		IgnoredBy: req.IgnoredBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingUserID):
			c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		case errors.Is(err, service.ErrUnknownAuthor):
			c.JSON(http.StatusNotFound, dto.Error(err.Error()))
		default:
			slog.ErrorContext(ctx, "failed to add ignored user", "error", err, "user_id", req.UserID)
			c.JSON(http.StatusInternalServerError, dto.Error("failed to add ignored user"))
		}
		return
	}

	slog.InfoContext(ctx, "user added to ignore list", "user_id", user.UserID)
	c.JSON(http.StatusCreated, dto.ToIgnoredUserResponse(*user))
}

func (h *IgnoredUserHandler) Remove(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	if err := h.service.Remove(ctx, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingUserID):
			c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		case errors.Is(err, service.ErrNotIgnored):
			c.JSON(http.StatusNotFound, dto.Error(err.Error()))
		default:
			slog.ErrorContext(ctx, "failed to remove ignored user", "error", err, "user_id", userID)
			c.JSON(http.StatusInternalServerError, dto.Error("failed to remove ignored user"))
		}
		return
	}

	slog.InfoContext(ctx, "user removed from ignore list", "user_id", userID)
	c.Status(http.StatusNoContent)
}
