package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/middlewares"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrProviderAuth),
		errors.Is(err, services.ErrProviderRejected),
		errors.Is(err, services.ErrProviderFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondServiceError maps the service error taxonomy onto HTTP codes.
func respondServiceError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		utils.ErrorLogger.WithField("path", c.Request.URL.Path).Errorf("internal error: %v", err)
		utils.RespondError(c, code, errors.New("internal server error"))
		return
	}
	_ = c.Error(err)
	utils.RespondError(c, code, err)
}

// inBranchScope reports whether a staff principal may act on branchID. Branch-less principals see every branch.
func inBranchScope(c *gin.Context, branchID string) bool {
	p := middlewares.GetPrincipal(c)
	return p != nil && (p.BranchID == "" || p.BranchID == branchID)
}
