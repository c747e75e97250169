package handler

import (
	"errors"
	"net/http"

	"stock-trader/internal/quote"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
)

// QuoteHandler 负责报价查询接口
type QuoteHandler struct {
	Quotes quote.Quoter
}

func NewQuoteHandler(q quote.Quoter) *QuoteHandler {
	return &QuoteHandler{Quotes: q}
}

type quoteReq struct {
	Symbol string `form:"symbol" json:"symbol"`
}

// Lookup resolves a ticker symbol to its current name and price.
func (h *QuoteHandler) Lookup(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBind(&req); err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid form")
		return
	}

	symbol, err := util.NormalizeSymbol(req.Symbol)
	if err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "must provide a symbol")
		return
	}

	q, err := h.Quotes.Lookup(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "no stock found")
		} else {
			util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "quote lookup failed")
		}
		return
	}

	util.Success(c, util.Response{
		"symbol": q.Symbol,
		"name":   q.Name,
		"price":  q.Price.StringFixed(2),
	})
}

// Form 报价表单描述（GET）
func (h *QuoteHandler) Form(c *gin.Context) {
	util.Success(c, util.Response{
		"fields": []string{"symbol"},
	})
}
