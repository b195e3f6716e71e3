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

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateCustomerOrder -> order dari menu QR, wajib token meja
func (oc *OrderController) CreateCustomerOrder(c *gin.Context) {
	var req services.CustomerOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Token == "" {
		req.Token = c.GetHeader("X-Table-Token")
	}

	order, err := oc.Orders.CreateForCustomer(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created successfully", order)
}

func (oc *OrderController) CreateStaffOrder(c *gin.Context) {
	var req services.StaffOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.CreateForStaff(c.Request.Context(), middlewares.GetPrincipal(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created successfully", order)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.Orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order details", order)
}

// scopedOrder loads the order and hides it from staff of other branches.
func (oc *OrderController) scopedOrder(c *gin.Context) (*models.Order, bool) {
	order, err := oc.Orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if !inBranchScope(c, order.BranchID) {
		respondServiceError(c, fmt.Errorf("%w: order %s", services.ErrNotFound, order.ID))
		return nil, false
	}
	return order, true
}

func (oc *OrderController) UpdateStatus(c *gin.Context) {
	var req struct {
		Status        string  `json:"status" binding:"required"`
		PaymentMethod *string `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		respondServiceError(c, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
		return
	}
	var method *models.PaymentMethod
	if req.PaymentMethod != nil && *req.PaymentMethod != "" {
		m, err := models.ParsePaymentMethod(*req.PaymentMethod)
		if err != nil {
			respondServiceError(c, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
			return
		}
		method = &m
	}

	order, ok := oc.scopedOrder(c)
	if !ok {
		return
	}
	updated, err := oc.Orders.Transition(c.Request.Context(), order.ID, status, method)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", updated)
}

func (oc *OrderController) AddItems(c *gin.Context) {
	var req struct {
		Items []services.ItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, ok := oc.scopedOrder(c)
	if !ok {
		return
	}
	updated, err := oc.Orders.AddItems(c.Request.Context(), order.ID, req.Items)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items added", updated)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	order, ok := oc.scopedOrder(c)
	if !ok {
		return
	}
	cancelled, err := oc.Orders.Cancel(c.Request.Context(), order.ID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", cancelled)
}

func (oc *OrderController) MarkPrebillPrinted(c *gin.Context) {
	order, ok := oc.scopedOrder(c)
	if !ok {
		return
	}
	mark, err := oc.Orders.MarkPrebillPrinted(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Prebill marked", mark)
}
