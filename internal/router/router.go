package router

import (
	"stock-trader/internal/config"
	"stock-trader/internal/handler"
	"stock-trader/internal/middleware"
	"stock-trader/internal/quote"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine and the route table.
func SetupRouter(cfg *config.Config, db *gorm.DB, quotes quote.Quoter) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	jwtSecret := cfg.JWT.Secret

	startingCash, err := decimal.NewFromString(cfg.App.StartingCash)
	if err != nil || !startingCash.IsPositive() {
		startingCash = decimal.NewFromInt(10000)
	}

	// 注册/登录/登出（不需要鉴权）
	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours, startingCash)
	r.GET("/register", authHandler.RegisterForm)
	r.POST("/register", authHandler.Register)
	r.GET("/login", authHandler.LoginForm)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// 需要登录才能访问的接口
	protected := r.Group("")
	protected.Use(middleware.AuthMiddleware(jwtSecret, db))

	protected.GET("/me", handler.GetMe)

	portfolioHandler := handler.NewPortfolioHandler(db, quotes)
	protected.GET("/", portfolioHandler.Index)

	tradeHandler := handler.NewTradeHandler(db, quotes)
	protected.GET("/buy", tradeHandler.BuyForm)
	protected.POST("/buy", tradeHandler.Buy)
	protected.GET("/sell", tradeHandler.SellForm)
	protected.POST("/sell", tradeHandler.Sell)

	quoteHandler := handler.NewQuoteHandler(quotes)
	protected.GET("/quote", quoteHandler.Form)
	protected.POST("/quote", quoteHandler.Lookup)

	historyHandler := handler.NewHistoryHandler(db, quotes)
	protected.GET("/history", historyHandler.List)
	protected.GET("/history/export/csv", historyHandler.ExportCSV)
	protected.GET("/history/export/xlsx", historyHandler.ExportXLSX)

	return r
}
