package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/controllers"
	"github.com/yeremiapane/mesa-qr-orders/kds"
	"github.com/yeremiapane/mesa-qr-orders/middlewares"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// Dependencies are the wired services the HTTP layer exposes.
type Dependencies struct {
	Tokens      *services.TokenManager
	Orders      *services.OrderService
	Waiter      *services.WaiterService
	Payments    *services.PaymentService
	Hub         *kds.Hub
	JWT         *utils.JWTManager
	FrontendURL string
	CORSOrigin  string
	Release     bool
	// RateLimit is requests per second per IP; zero disables the limiter.
	RateLimit float64
}

func SetupRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(d.Release))
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	if d.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(d.RateLimit, int(d.RateLimit)*2).RateLimit())
	}

	// Inisialisasi controller
	tableCtrl := controllers.NewTableController(d.Tokens, d.Orders, d.FrontendURL)
	orderCtrl := controllers.NewOrderController(d.Orders)
	waiterCtrl := controllers.NewWaiterCallController(d.Waiter)
	paymentCtrl := controllers.NewPaymentController(d.Payments, d.FrontendURL)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// -- CUSTOMER (token meja, tanpa login) --
	r.GET("/mesas/:branch_id/:mesa_id/session", tableCtrl.GetOrCreateSession)
	r.POST("/mesas/:branch_id/:mesa_id/validate", tableCtrl.ValidateToken)
	r.POST("/orders", orderCtrl.CreateCustomerOrder)
	r.GET("/orders/:order_id", orderCtrl.GetOrder)
	r.POST("/waiter/calls", middlewares.OptionalAuth(d.JWT), waiterCtrl.CreateCall)

	payment := r.Group("/payment")
	payment.Use(middlewares.LogPaymentRequest())
	{
		payment.POST("/create-preference", paymentCtrl.CreatePreference)
		payment.GET("/success", paymentCtrl.Success())
		payment.GET("/failure", paymentCtrl.Failure())
		payment.GET("/pending", paymentCtrl.Pending())
		payment.POST("/webhooks/mercadopago", middlewares.WebhookRateLimiter(20, 40), paymentCtrl.Webhook)
	}

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(d.JWT), kdsCtrl.KDSHandler)

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware(d.JWT))
	auth.Use(middlewares.RequireRoles(services.StaffRoles()...))

	// MESAS
	auth.POST("/mesas/:branch_id/:mesa_id/renew", tableCtrl.RenewToken)
	auth.GET("/mesas/:branch_id/:mesa_id/token", tableCtrl.TokenInfo)
	auth.GET("/mesas/:branch_id/:mesa_id/qr.png", tableCtrl.QRCode)
	auth.GET("/mesas/:branch_id/:mesa_id/orders", tableCtrl.ListOrders)
	auth.POST("/mesas/:branch_id/:mesa_id/settle", tableCtrl.SettleTable)

	// ORDERS
	auth.POST("/orders", orderCtrl.CreateStaffOrder)
	auth.PUT("/orders/:order_id/status", orderCtrl.UpdateStatus)
	auth.POST("/orders/:order_id/items", orderCtrl.AddItems)
	auth.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)
	auth.POST("/orders/:order_id/prebill/mark-printed", orderCtrl.MarkPrebillPrinted)

	// WAITER CALLS
	auth.GET("/waiter/calls", waiterCtrl.ListCalls)
	auth.PUT("/waiter/calls/:call_id/status", waiterCtrl.UpdateCallStatus)
	auth.DELETE("/waiter/calls/:call_id", waiterCtrl.DeleteCall)

	// PAYMENTS
	auth.POST("/payment/reject-order/:order_id", middlewares.RequireRoles("admin", "caja", "desarrollador"), paymentCtrl.RejectOrder)

	return r
}
