package handler_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"testing"

	"stock-trader/internal/models"
)

func tradeForm(symbol, shares string) url.Values {
	return url.Values{
		"symbol": {symbol},
		"shares": {shares},
	}
}

func TestBuy(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	w := doPost(r, "/buy", token, tradeForm("nflx", "10"))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("buy status = %d, body = %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("buy redirect = %q, want /", loc)
	}

	wantCash(t, db, "alice", "9000")

	rows := ledgerRows(t, db, userByName(t, db, "alice").ID)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Symbol != "NFLX" || row.Action != models.ActionBuy || row.Shares != 10 {
		t.Errorf("ledger row = %s %s x%d, want NFLX BUY x10", row.Symbol, row.Action, row.Shares)
	}
	if row.TransactAmount.StringFixed(2) != "1000.00" {
		t.Errorf("transact amount = %s, want 1000.00", row.TransactAmount)
	}
}

func TestBuyInsufficientCash(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	w := doPost(r, "/buy", token, tradeForm("NFLX", "101")) // 10100 > 10000
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var apology struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &apology); err != nil {
		t.Fatalf("parse apology: %v", err)
	}
	if apology.Code != 40302 || apology.Message != "not enough cash" {
		t.Errorf("apology = %d %q, want 40302 \"not enough cash\"", apology.Code, apology.Message)
	}

	// rejection must not mutate anything
	wantCash(t, db, "alice", "10000")
	if rows := ledgerRows(t, db, userByName(t, db, "alice").ID); len(rows) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(rows))
	}
}

func TestBuyValidation(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	testCases := []struct {
		name   string
		symbol string
		shares string
	}{
		{"empty symbol", "", "10"},
		{"unknown symbol", "NOPE", "10"},
		{"empty shares", "NFLX", ""},
		{"zero shares", "NFLX", "0"},
		{"negative shares", "NFLX", "-3"},
		{"fractional shares", "NFLX", "1.5"},
		{"non-numeric shares", "NFLX", "ten"},
	}

	for _, tc := range testCases {
		w := doPost(r, "/buy", token, tradeForm(tc.symbol, tc.shares))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, w.Code)
		}
	}

	wantCash(t, db, "alice", "10000")
	if rows := ledgerRows(t, db, userByName(t, db, "alice").ID); len(rows) != 0 {
		t.Errorf("ledger rows after rejected buys = %d, want 0", len(rows))
	}
}

func TestSellInsufficientShares(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	if w := doPost(r, "/buy", token, tradeForm("NFLX", "5")); w.Code != http.StatusSeeOther {
		t.Fatalf("buy status = %d", w.Code)
	}

	w := doPost(r, "/sell", token, tradeForm("NFLX", "6"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversell status = %d, want 400", w.Code)
	}

	wantCash(t, db, "alice", "9500")
	if rows := ledgerRows(t, db, userByName(t, db, "alice").ID); len(rows) != 1 {
		t.Errorf("ledger rows = %d, want 1 (the original buy)", len(rows))
	}
}

func TestSellNeverOwned(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	w := doPost(r, "/sell", token, tradeForm("NFLX", "1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("sell without holding status = %d, want 400", w.Code)
	}
	wantCash(t, db, "alice", "10000")
}

// 端到端：10000 起步，100 买 10 股，110 卖 10 股，最终 10100
func TestBuySellRoundTrip(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	if w := doPost(r, "/buy", token, tradeForm("NFLX", "10")); w.Code != http.StatusSeeOther {
		t.Fatalf("buy status = %d", w.Code)
	}
	wantCash(t, db, "alice", "9000")

	// price moves before the sell
	quotes.set("NFLX", "Netflix Inc", "110")

	if w := doPost(r, "/sell", token, tradeForm("NFLX", "10")); w.Code != http.StatusSeeOther {
		t.Fatalf("sell status = %d", w.Code)
	}
	wantCash(t, db, "alice", "10100")

	rows := ledgerRows(t, db, userByName(t, db, "alice").ID)
	if len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(rows))
	}
	sell := rows[1]
	if sell.Action != models.ActionSell || sell.Shares != 10 || sell.TransactAmount.StringFixed(2) != "1100.00" {
		t.Errorf("sell row = %s x%d amount %s, want SELL x10 amount 1100.00",
			sell.Action, sell.Shares, sell.TransactAmount)
	}

	// the sold-out symbol disappears from the portfolio
	w := doGet(r, "/", token)
	if w.Code != http.StatusOK {
		t.Fatalf("portfolio status = %d", w.Code)
	}
	var resp struct {
		Data struct {
			Holdings []struct {
				Symbol string `json:"symbol"`
			} `json:"holdings"`
			Cash  string `json:"cash"`
			Total string `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse portfolio: %v", err)
	}
	if len(resp.Data.Holdings) != 0 {
		t.Errorf("holdings = %v, want empty after selling out", resp.Data.Holdings)
	}
	if resp.Data.Cash != "10100.00" || resp.Data.Total != "10100.00" {
		t.Errorf("cash/total = %s/%s, want 10100.00/10100.00", resp.Data.Cash, resp.Data.Total)
	}
}

// 并发双花：两笔买单单独看都付得起，但余额只够成交一笔。
// 事务以 BEGIN IMMEDIATE 串行化（database.Init 的 DSN），必须恰好一笔提交。
func TestConcurrentBuysCannotDoubleSpend(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "6000")
	r, db := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	start := make(chan struct{})
	codes := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			w := doPost(r, "/buy", token, tradeForm("NFLX", "1"))
			codes <- w.Code
		}()
	}
	close(start)

	got := []int{<-codes, <-codes}
	sort.Ints(got)
	if got[0] != http.StatusSeeOther || got[1] != http.StatusForbidden {
		t.Fatalf("statuses = %v, want exactly one 303 and one 403", got)
	}

	// 只有一笔成交：余额 10000 - 6000，账本一行，余额不为负
	wantCash(t, db, "alice", "4000")
	rows := ledgerRows(t, db, userByName(t, db, "alice").ID)
	if len(rows) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(rows))
	}
	if userByName(t, db, "alice").Cash.IsNegative() {
		t.Error("cash went negative")
	}
}

func TestSellFormListsHeldSymbols(t *testing.T) {
	quotes := newFakeQuoter()
	quotes.set("NFLX", "Netflix Inc", "100")
	quotes.set("AAPL", "Apple Inc", "10")
	r, _ := newTestRouter(t, quotes)

	registerUser(t, r, "alice", "Passw0rd")
	token := login(t, r, "alice", "Passw0rd")

	doPost(r, "/buy", token, tradeForm("NFLX", "2"))
	doPost(r, "/buy", token, tradeForm("AAPL", "3"))
	doPost(r, "/sell", token, tradeForm("NFLX", "2")) // sold out again

	w := doGet(r, "/sell", token)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /sell status = %d", w.Code)
	}
	var resp struct {
		Data struct {
			Symbols []string `json:"symbols"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse sell form: %v", err)
	}
	if len(resp.Data.Symbols) != 1 || resp.Data.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL]", resp.Data.Symbols)
	}
}
