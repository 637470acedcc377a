package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/usecase"
)

// Error codes sent next to the message so clients can tell conflicts apart.
const (
	CodeInvalid        = "invalid_request"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeAlreadyClaimed = "already_claimed"
	CodeNotOwner       = "not_owner"
	CodeWriteRejected  = "write_rejected"
	CodeBadTransition  = "invalid_transition"
	CodeInternal       = "internal"
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalid
	case errors.Is(err, usecase.ErrNotAuthorized):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, usecase.ErrClaimConflict):
		return http.StatusConflict, CodeAlreadyClaimed
	case errors.Is(err, usecase.ErrNotOwner):
		return http.StatusConflict, CodeNotOwner
	case errors.Is(err, support.ErrWriterNotAllowed):
		return http.StatusConflict, CodeWriteRejected
	case errors.Is(err, support.ErrInvalidTransition):
		return http.StatusConflict, CodeBadTransition
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// persistence details stay in the logs
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": CodeInvalid})
}
