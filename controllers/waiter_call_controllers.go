package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/middlewares"
	"github.com/yeremiapane/mesa-qr-orders/models"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

type WaiterCallController struct {
	Calls *services.WaiterService
}

func NewWaiterCallController(calls *services.WaiterService) *WaiterCallController {
	return &WaiterCallController{Calls: calls}
}

// CreateCall -> 201 untuk panggilan baru, 200 jika sudah ada yang PENDING
func (wc *WaiterCallController) CreateCall(c *gin.Context) {
	var req services.CreateCallInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Token == "" {
		req.Token = c.GetHeader("X-Table-Token")
	}

	call, alreadyPending, err := wc.Calls.Create(c.Request.Context(), middlewares.GetPrincipal(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	body := gin.H{"call": call, "already_pending": alreadyPending}
	if alreadyPending {
		utils.RespondJSON(c, http.StatusOK, "Waiter already called", body)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Waiter called", body)
}

func (wc *WaiterCallController) ListCalls(c *gin.Context) {
	filter := services.WaiterCallFilter{
		BranchID: c.Query("branch_id"),
		MesaID:   c.Query("mesa_id"),
	}
	if p := middlewares.GetPrincipal(c); p != nil && p.BranchID != "" {
		filter.BranchID = p.BranchID
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseWaiterCallStatus(raw)
		if err != nil {
			respondServiceError(c, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
			return
		}
		filter.Status = &status
	}

	calls, err := wc.Calls.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Waiter calls", calls)
}

func (wc *WaiterCallController) scopedCall(c *gin.Context) (*models.WaiterCall, bool) {
	call, err := wc.Calls.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if !inBranchScope(c, call.BranchID) {
		respondServiceError(c, fmt.Errorf("%w: waiter call %s", services.ErrNotFound, call.ID))
		return nil, false
	}
	return call, true
}

func (wc *WaiterCallController) UpdateCallStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	status, err := models.ParseWaiterCallStatus(req.Status)
	if err != nil {
		respondServiceError(c, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
		return
	}

	call, ok := wc.scopedCall(c)
	if !ok {
		return
	}
	updated, err := wc.Calls.UpdateStatus(c.Request.Context(), call.ID, status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Waiter call updated", updated)
}

// DeleteCall is a soft delete (CANCELLED).
func (wc *WaiterCallController) DeleteCall(c *gin.Context) {
	call, ok := wc.scopedCall(c)
	if !ok {
		return
	}
	cancelled, err := wc.Calls.Cancel(c.Request.Context(), call.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Waiter call cancelled", cancelled)
}
