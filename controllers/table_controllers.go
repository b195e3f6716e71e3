package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

type TableController struct {
	Tokens      *services.TokenManager
	Orders      *services.OrderService
	FrontendURL string
}

func NewTableController(tokens *services.TokenManager, orders *services.OrderService, frontendURL string) *TableController {
	return &TableController{Tokens: tokens, Orders: orders, FrontendURL: frontendURL}
}

func tableParams(c *gin.Context) (mesaID, branchID string) {
	return c.Param("mesa_id"), c.Param("branch_id")
}

// GetOrCreateSession -> token untuk customer yang scan QR
func (tc *TableController) GetOrCreateSession(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	session, err := tc.Tokens.GetOrCreateSession(c.Request.Context(), mesaID, branchID, 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session ready", session)
}

func (tc *TableController) ValidateToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	mesaID, branchID := tableParams(c)
	if !tc.Tokens.Validate(c.Request.Context(), mesaID, branchID, req.Token) {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("token inválido o expirado"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Token valid", gin.H{"valid": true})
}

func (tc *TableController) RenewToken(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	if !inBranchScope(c, branchID) {
		respondServiceError(c, fmt.Errorf("%w: mesa", services.ErrNotFound))
		return
	}

	var req struct {
		TTLSeconds int `json:"ttl_seconds" binding:"omitempty,gte=60,lte=86400"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	ttl := tc.Tokens.DefaultTTL()
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	token, err := tc.Tokens.Renew(c.Request.Context(), mesaID, branchID, ttl)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Token renewed", services.Session{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
	})
}

func (tc *TableController) TokenInfo(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	if !inBranchScope(c, branchID) {
		respondServiceError(c, fmt.Errorf("%w: mesa", services.ErrNotFound))
		return
	}
	info, err := tc.Tokens.TokenInfo(c.Request.Context(), mesaID, branchID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Token info", info)
}

// QRCode -> PNG yang dicetak dan ditempel di meja
func (tc *TableController) QRCode(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	if !inBranchScope(c, branchID) {
		respondServiceError(c, fmt.Errorf("%w: mesa", services.ErrNotFound))
		return
	}
	if _, err := tc.Tokens.TokenInfo(c.Request.Context(), mesaID, branchID); err != nil {
		respondServiceError(c, err)
		return
	}

	target := fmt.Sprintf("%s/menu?branch=%s&mesa=%s",
		strings.TrimRight(tc.FrontendURL, "/"), url.QueryEscape(branchID), url.QueryEscape(mesaID))
	png, err := utils.GenerateQRCode(target, 512)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (tc *TableController) ListOrders(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	if !inBranchScope(c, branchID) {
		respondServiceError(c, fmt.Errorf("%w: mesa", services.ErrNotFound))
		return
	}
	orders, err := tc.Orders.ListForTable(c.Request.Context(), mesaID, branchID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders", orders)
}

// SettleTable -> tandai order terakhir di meja sebagai PAID
func (tc *TableController) SettleTable(c *gin.Context) {
	mesaID, branchID := tableParams(c)
	if !inBranchScope(c, branchID) {
		respondServiceError(c, fmt.Errorf("%w: mesa", services.ErrNotFound))
		return
	}
	order, err := tc.Orders.SettleLatestForTable(c.Request.Context(), mesaID, branchID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table settled", order)
}
