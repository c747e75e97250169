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

// 交易被业务规则拒绝时的哨兵错误，用于把事务回滚映射到 HTTP 状态
var (
	errInsufficientCash   = errors.New("not enough cash")
	errInsufficientShares = errors.New("not enough shares to sell")
)

// TradeHandler 负责买入/卖出接口
type TradeHandler struct {
	DB     *gorm.DB
	Quotes quote.Quoter
}

func NewTradeHandler(db *gorm.DB, q quote.Quoter) *TradeHandler {
	return &TradeHandler{DB: db, Quotes: q}
}

type tradeReq struct {
	Symbol string `form:"symbol" json:"symbol"`
	Shares string `form:"shares" json:"shares"`
}

// validateTrade 校验表单并解析报价，买卖共用
func (h *TradeHandler) validateTrade(c *gin.Context) (symbol string, shares int64, q *quote.Quote, ok bool) {
	var req tradeReq
	if err := c.ShouldBind(&req); err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid form")
		return "", 0, nil, false
	}

	symbol, err := util.NormalizeSymbol(req.Symbol)
	if err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "must provide a symbol")
		return "", 0, nil, false
	}

	shares, err = util.ParseShares(req.Shares)
	if err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "shares must be a positive integer")
		return "", 0, nil, false
	}

	q, err = h.Quotes.Lookup(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "no stock found")
		} else {
			util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "quote lookup failed")
		}
		return "", 0, nil, false
	}

	return symbol, shares, q, true
}

// Buy 买入：校验 → 余额检查 → 扣减现金 + 追加 BUY 流水，单事务完成，
// 防止并发交易用同一笔余额双花。
func (h *TradeHandler) Buy(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	symbol, shares, q, ok := h.validateTrade(c)
	if !ok {
		return
	}

	amount := q.Price.Mul(decimal.NewFromInt(shares))

	// 事务以 BEGIN IMMEDIATE 打开（见 database.Init），余额读取到写入之间
	// 不会有并发交易插队
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.User
		if err := tx.First(&locked, user.ID).Error; err != nil {
			return err
		}

		if locked.Cash.LessThan(amount) {
			return errInsufficientCash
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", locked.ID).
			Update("cash", locked.Cash.Sub(amount)).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:         locked.ID,
			Symbol:         symbol,
			Shares:         shares,
			Price:          q.Price,
			Action:         models.ActionBuy,
			TransactAmount: amount,
		}).Error
	})

	switch {
	case errors.Is(err, errInsufficientCash):
		util.Apology(c, http.StatusForbidden, util.CodeForbidden, "not enough cash")
		return
	case err != nil:
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "trade failed")
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// Sell 卖出：持仓检查基于账本归并（BUY 和 − SELL 和），与买入同样的事务保护。
func (h *TradeHandler) Sell(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	symbol, shares, q, ok := h.validateTrade(c)
	if !ok {
		return
	}

	amount := q.Price.Mul(decimal.NewFromInt(shares))

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.User
		if err := tx.First(&locked, user.ID).Error; err != nil {
			return err
		}

		var rows []models.Transaction
		if err := tx.Where("user_id = ? AND symbol = ?", locked.ID, symbol).
			Find(&rows).Error; err != nil {
			return err
		}
		if netBySymbol(rows)[symbol] < shares {
			return errInsufficientShares
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", locked.ID).
			Update("cash", locked.Cash.Add(amount)).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:         locked.ID,
			Symbol:         symbol,
			Shares:         shares,
			Price:          q.Price,
			Action:         models.ActionSell,
			TransactAmount: amount,
		}).Error
	})

	switch {
	case errors.Is(err, errInsufficientShares):
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "not enough shares to sell")
		return
	case err != nil:
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "trade failed")
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// BuyForm 买入表单描述（GET）
func (h *TradeHandler) BuyForm(c *gin.Context) {
	util.Success(c, util.Response{
		"fields": []string{"symbol", "shares"},
	})
}

// SellForm 卖出表单：返回当前持仓的股票代码，供下拉框使用
func (h *TradeHandler) SellForm(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	var rows []models.Transaction
	if err := h.DB.Where("user_id = ?", user.ID).Find(&rows).Error; err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query ledger")
		return
	}

	symbols := make([]string, 0)
	for symbol, net := range netBySymbol(rows) {
		if net > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	util.Success(c, util.Response{
		"fields":  []string{"symbol", "shares"},
		"symbols": symbols,
	})
}
