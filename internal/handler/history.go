package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stock-trader/internal/models"
	"stock-trader/internal/quote"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// HistoryHandler 负责交易历史及导出接口
type HistoryHandler struct {
	DB     *gorm.DB
	Quotes quote.Quoter
}

func NewHistoryHandler(db *gorm.DB, q quote.Quoter) *HistoryHandler {
	return &HistoryHandler{DB: db, Quotes: q}
}

type historyRowResp struct {
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Action   string    `json:"action"`
	Shares   int64     `json:"shares"`
	Price    string    `json:"price"`
	Amount   string    `json:"amount"`
	TradedAt time.Time `json:"traded_at"`
}

// List shows the full ledger for the user, oldest first. Display names
// are resolved at render time and fall back to the bare symbol when
// the quote collaborator no longer knows the ticker.
func (h *HistoryHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	rows, err := h.ledger(user.ID)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query ledger")
		return
	}

	// 同一个代码只查一次名字
	names := make(map[string]string)
	items := make([]historyRowResp, 0, len(rows))
	for _, row := range rows {
		name, cached := names[row.Symbol]
		if !cached {
			name = row.Symbol
			if q, err := h.Quotes.Lookup(c.Request.Context(), row.Symbol); err == nil {
				name = q.Name
			}
			names[row.Symbol] = name
		}

		items = append(items, historyRowResp{
			Symbol:   row.Symbol,
			Name:     name,
			Action:   row.Action,
			Shares:   row.Shares,
			Price:    row.Price.StringFixed(2),
			Amount:   row.TransactAmount.StringFixed(2),
			TradedAt: row.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"items": items,
		"total": len(items),
	})
}

func (h *HistoryHandler) ledger(userID uint) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := h.DB.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

var exportHeaders = []string{"Symbol", "Action", "Shares", "Price", "Amount", "Date"}

// ExportCSV 导出交易历史为 CSV
func (h *HistoryHandler) ExportCSV(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	rows, err := h.ledger(user.ID)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query ledger")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for _, row := range rows {
		writer.Write([]string{
			row.Symbol,
			row.Action,
			strconv.FormatInt(row.Shares, 10),
			row.Price.StringFixed(2),
			row.TransactAmount.StringFixed(2),
			row.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// ExportXLSX 导出交易历史为 XLSX
func (h *HistoryHandler) ExportXLSX(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	rows, err := h.ledger(user.ID)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query ledger")
		return
	}

	f := excelize.NewFile()
	sheetName := "Transactions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create sheet")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for idx, row := range rows {
		r := idx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), row.Symbol)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), row.Action)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), row.Shares)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), row.Price.StringFixed(2))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", r), row.TransactAmount.StringFixed(2))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", r), row.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	f.SetColWidth(sheetName, "A", "B", 10)
	f.SetColWidth(sheetName, "C", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 20)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "export failed")
	}
}
