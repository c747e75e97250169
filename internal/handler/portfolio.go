package handler

import (
	"errors"
	"net/http"
	"sort"

	"stock-trader/internal/models"
	"stock-trader/internal/quote"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PortfolioHandler 负责持仓总览接口
type PortfolioHandler struct {
	DB     *gorm.DB
	Quotes quote.Quoter
}

func NewPortfolioHandler(db *gorm.DB, q quote.Quoter) *PortfolioHandler {
	return &PortfolioHandler{DB: db, Quotes: q}
}

// netBySymbol 把账本流水归并成每个代码的净持股（BUY 和 − SELL 和）。
// 显式的 map 归并，不依赖任何数据库的分组结果形状。
func netBySymbol(rows []models.Transaction) map[string]int64 {
	net := make(map[string]int64, len(rows))
	for _, row := range rows {
		if row.Action == models.ActionSell {
			net[row.Symbol] -= row.Shares
		} else {
			net[row.Symbol] += row.Shares
		}
	}
	return net
}

type holdingResp struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Shares     int64  `json:"shares"`
	Price      string `json:"price"`
	Value      string `json:"value"`
	PriceStale bool   `json:"price_stale,omitempty"`
}

// Index renders the portfolio: every symbol with nonzero net shares,
// priced fresh per request, plus cash and total value. Sold-out
// symbols (net zero) are dropped.
func (h *PortfolioHandler) Index(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	var rows []models.Transaction
	if err := h.DB.Where("user_id = ?", user.ID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query ledger")
		return
	}

	net := netBySymbol(rows)
	symbols := make([]string, 0, len(net))
	for symbol, shares := range net {
		if shares > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	holdings := make([]holdingResp, 0, len(symbols))
	total := user.Cash

	for _, symbol := range symbols {
		shares := net[symbol]

		var (
			name  string
			price decimal.Decimal
			stale bool
		)
		q, err := h.Quotes.Lookup(c.Request.Context(), symbol)
		switch {
		case err == nil:
			name = q.Name
			price = q.Price
		case errors.Is(err, quote.ErrNotFound):
			// 代码已无法解析：退回到本人账本里最近一次成交价，并打上过期标记
			price = lastKnownPrice(rows, symbol)
			name = symbol
			stale = true
		default:
			util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "quote lookup failed")
			return
		}

		value := price.Mul(decimal.NewFromInt(shares))
		total = total.Add(value)

		holdings = append(holdings, holdingResp{
			Symbol:     symbol,
			Name:       name,
			Shares:     shares,
			Price:      price.StringFixed(2),
			Value:      value.StringFixed(2),
			PriceStale: stale,
		})
	}

	util.Success(c, util.Response{
		"holdings": holdings,
		"cash":     user.Cash.StringFixed(2),
		"total":    total.StringFixed(2),
	})
}

// lastKnownPrice 返回该代码在账本里最近一笔成交的价格；rows 按时间升序
func lastKnownPrice(rows []models.Transaction, symbol string) decimal.Decimal {
	price := decimal.Zero
	for _, row := range rows {
		if row.Symbol == symbol {
			price = row.Price
		}
	}
	return price
}
