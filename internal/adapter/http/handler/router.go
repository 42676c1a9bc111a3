package handler

import (
	"p2p-desk/internal/adapter/http/middleware"
	"p2p-desk/internal/core/ports"
	"p2p-desk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Sessions       *service.SessionService
	Queues         *service.QueueService
	Dispatcher     *service.Dispatcher
	Desk           *service.Desk
	Wallet         *service.WalletService
	Tickets        *service.TicketService
	TokenSvc       ports.TokenService
	ThrottleStore  middleware.ThrottleStore    // nil = throttling disabled
	AuditSvc       ports.AuditService          // nil = journal disabled
	AuditRepo      ports.ActionAuditRepository // nil = journal listing disabled
	HealthCheckers []ports.HealthChecker
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.AuditSvc != nil {
		r.Use(middleware.Journal(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultThrottleRules()

	// Helper: return throttle middleware if a store is available, else noop.
	th := func(group string) gin.HandlerFunc {
		if deps.ThrottleStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.Throttle(deps.ThrottleStore, group, rule, deps.Logger)
	}

	anyone := middleware.SessionAuth(deps.TokenSvc, deps.Sessions, true)
	signedIn := middleware.SessionAuth(deps.TokenSvc, deps.Sessions, false)

	v1 := r.Group("/api/v1")

	// --- Login flows (a desk session is optional) ---
	sessionHandler := NewSessionHandler(deps.Sessions, deps.Wallet)
	sessions := v1.Group("/sessions")
	{
		sessions.GET("", signedIn, sessionHandler.Roles)
		sessions.POST("/:role/signin", anyone, th("signin"), sessionHandler.SignIn)
		sessions.POST("/:role/verify", anyone, th("verify"), sessionHandler.Verify)
		sessions.DELETE("/:role", signedIn, sessionHandler.Logout)
	}
	signup := v1.Group("/signup", anyone, th("signup"))
	{
		signup.POST("", sessionHandler.SignUp)
		signup.POST("/verify", sessionHandler.VerifySignup)
	}

	// --- Trading ---
	tradeHandler := NewTradeHandler(deps.Queues, deps.Dispatcher)
	deals := v1.Group("/deals", signedIn)
	{
		deals.GET("", tradeHandler.ListDeals)
		deals.POST("/:id/pick", th("actions"), tradeHandler.PickDeal)
	}
	orders := v1.Group("/orders", signedIn)
	{
		orders.GET("/:actor", tradeHandler.ListOrders)
		orders.POST("/:actor/:id/transition", th("actions"), tradeHandler.Transition)
	}

	// --- Wallet ---
	walletHandler := NewWalletHandler(deps.Wallet)
	wallet := v1.Group("/wallet", signedIn)
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.GET("/history", walletHandler.History)
		wallet.GET("/income", walletHandler.Income)
		wallet.GET("/withdrawals", walletHandler.Withdrawals)
		wallet.POST("/withdraw", th("withdraw"), walletHandler.Withdraw)
	}
	v1.GET("/admin/wallet/history", signedIn, walletHandler.AdminHistory)

	// --- Tickets ---
	ticketHandler := NewTicketHandler(deps.Tickets)
	tickets := v1.Group("/tickets", signedIn)
	{
		tickets.GET("", ticketHandler.History)
		tickets.POST("", th("tickets"), ticketHandler.Raise)
	}
	staff := v1.Group("/staff/:role/tickets", signedIn)
	{
		staff.GET("", ticketHandler.List)
		staff.PATCH("/:id", th("tickets"), ticketHandler.Manage)
	}

	// --- Live views ---
	if deps.Desk != nil {
		streamHandler := NewStreamHandler(deps.Desk, deps.AllowedOrigins, deps.Logger)
		stream := v1.Group("/stream", signedIn)
		{
			stream.GET("/orders/:actor", streamHandler.Orders)
			stream.GET("/deals", streamHandler.Deals)
		}
	}

	// --- Action journal ---
	if deps.AuditRepo != nil {
		v1.GET("/audit", signedIn, NewAuditHandler(deps.AuditRepo).List)
	}

	return r
}
