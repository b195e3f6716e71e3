package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

type PaymentController struct {
	Payments    *services.PaymentService
	FrontendURL string
}

func NewPaymentController(payments *services.PaymentService, frontendURL string) *PaymentController {
	return &PaymentController{Payments: payments, FrontendURL: frontendURL}
}

func (pc *PaymentController) CreatePreference(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	pref, err := pc.Payments.CreatePreference(c.Request.Context(), req.OrderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Preference created", gin.H{
		"preference_id": pref.ID,
		"init_point":    pref.InitPoint,
	})
}

// callbackParams: MercadoPago sends payment_id or collection_id depending on the checkout flow.
func callbackParams(c *gin.Context) (paymentID, externalReference string) {
	paymentID = c.Query("payment_id")
	if paymentID == "" {
		paymentID = c.Query("collection_id")
	}
	return paymentID, c.Query("external_reference")
}

func (pc *PaymentController) redirectToFrontend(c *gin.Context, result, orderID string, failed bool) {
	q := url.Values{}
	q.Set("status", result)
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	if failed {
		q.Set("error", "1")
	}
	c.Redirect(http.StatusFound, strings.TrimRight(pc.FrontendURL, "/")+"/payment/result?"+q.Encode())
}

type callbackHandler func(c *gin.Context, paymentID, externalReference string) error

func (pc *PaymentController) callback(result string, handle callbackHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ref := callbackParams(c)
		err := handle(c, paymentID, ref)
		if err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"result":             result,
				"payment_id":         paymentID,
				"external_reference": ref,
			}).Errorf("payment callback failed: %v", err)
		}
		pc.redirectToFrontend(c, result, ref, err != nil)
	}
}

func (pc *PaymentController) Success() gin.HandlerFunc {
	return pc.callback("success", func(c *gin.Context, paymentID, ref string) error {
		return pc.Payments.HandleSuccess(c.Request.Context(), paymentID, ref)
	})
}

func (pc *PaymentController) Failure() gin.HandlerFunc {
	return pc.callback("failure", func(c *gin.Context, paymentID, ref string) error {
		return pc.Payments.HandleFailure(c.Request.Context(), paymentID, ref)
	})
}

func (pc *PaymentController) Pending() gin.HandlerFunc {
	return pc.callback("pending", func(c *gin.Context, paymentID, ref string) error {
		return pc.Payments.HandlePending(c.Request.Context(), paymentID, ref)
	})
}

type webhookBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Webhook -> notifikasi server-to-server dari MercadoPago
func (pc *PaymentController) Webhook(c *gin.Context) {
	var body webhookBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}
	n := services.Notification{
		Type:    body.Type,
		Action:  body.Action,
		DataID:  body.Data.ID,
		OrderID: c.Query("order_id"),
	}
	// Format lama (IPN) memakai query string
	if n.Type == "" {
		n.Type = c.Query("type")
		if n.Type == "" {
			n.Type = c.Query("topic")
		}
	}
	if n.DataID == "" {
		n.DataID = c.Query("data.id")
		if n.DataID == "" {
			n.DataID = c.Query("id")
		}
	}

	secret := pc.Payments.WebhookSecret(c.Request.Context(), n.OrderID)
	if !services.ValidateWebhookSignature(secret, c.GetHeader("x-signature"), c.GetHeader("x-request-id"), n.DataID) {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	if err := pc.Payments.HandleWebhook(c.Request.Context(), n); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "ok", nil)
}

func (pc *PaymentController) RejectOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	order, err := pc.Payments.Order(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !inBranchScope(c, order.BranchID) {
		respondServiceError(c, fmt.Errorf("%w: order %s", services.ErrNotFound, order.ID))
		return
	}

	result, err := pc.Payments.RejectOrder(c.Request.Context(), order.ID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order rejected", result)
}
