package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yeremiapane/mesa-qr-orders/services"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrInvalidInput, http.StatusBadRequest},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrInvalidState, http.StatusConflict},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrProviderAuth, http.StatusBadGateway},
		{services.ErrProviderRejected, http.StatusBadGateway},
		{services.ErrProviderFailure, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("%w: order 42", tc.err)
		assert.Equal(t, tc.want, statusFor(wrapped), tc.err.Error())
	}
}

func TestRespondServiceErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/orders/1", nil)

	respondServiceError(c, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}
