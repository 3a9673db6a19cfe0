package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/log"
	"spendlog/internal/timerange"
)

type createExpenseResponse struct {
	Record           core.ExpenseRecord `json:"record"`
	CategoryResolved bool               `json:"category_resolved"`
}

type updateExpenseRequest struct {
	Timestamp int64            `json:"timestamp"`
	Item      *string          `json:"item,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Category  *core.CategoryID `json:"category,omitempty"`
}

type deleteExpenseRequest struct {
	Item   string          `json:"item"`
	Amount decimal.Decimal `json:"amount"`
}

// handleListExpenses serves the whole ledger, one local day (?date=) or one
// local month (?year=&month=).
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		recs []core.ExpenseRecord
		err  error
	)
	switch {
	case q.Get("date") != "":
		var day time.Time
		day, err = timerange.ParseDate(sanitizeInput(q.Get("date")), s.loc)
		if err != nil {
			err = fmt.Errorf("%w: date %q", errBadRequest, q.Get("date"))
			break
		}
		recs, err = s.queries.HistoryByDate(ctx, day)
	case q.Has("year") || q.Has("month"):
		var mp MonthParams
		mp, err = ParseMonthParams(q, s.now().In(s.loc))
		if err != nil {
			break
		}
		if mp.Month < 1 || mp.Month > 12 {
			err = fmt.Errorf("%w: %d", core.ErrInvalidMonth, mp.Month)
			break
		}
		recs, err = s.ledger.ByMonth(ctx, mp.Year, time.Month(mp.Month))
	default:
		recs, err = s.ledger.ListAll(ctx)
	}
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if recs == nil {
		recs = []core.ExpenseRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var rec core.ExpenseRecord
	if err := DecodeJSONBody(r, &rec); err != nil {
		writeError(w, r, log.OpInsert, err)
		return
	}
	rec.Item = sanitizeInput(rec.Item)
	rec.Category = core.CategoryID(sanitizeInput(string(rec.Category)))
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	dir, err := s.ledger.Categories(ctx)
	if err != nil {
		writeError(w, r, log.OpInsert, err)
		return
	}
	res, err := s.ledger.Insert(ctx, rec, dir)
	if err != nil {
		writeError(w, r, log.OpInsert, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Expense created",
		log.NewFields().WithExpense(res.Record.Item, res.Record.Amount, string(res.Record.Category)).ToSlice()...)
	writeJSON(w, http.StatusCreated, createExpenseResponse{Record: res.Record, CategoryResolved: res.CategoryResolved})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if req.Timestamp == 0 {
		writeError(w, r, log.OpUpdate, fmt.Errorf("%w: timestamp is required", core.ErrInvalidTimestamp))
		return
	}
	if req.Item != nil {
		item := sanitizeInput(*req.Item)
		req.Item = &item
	}

	ok, err := s.ledger.Update(r.Context(), ledger.RecordPatch{
		Timestamp: time.UnixMilli(req.Timestamp),
		Item:      req.Item,
		Amount:    req.Amount,
		Category:  req.Category,
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if !ok {
		NotFoundError("no expenses have been recorded yet").Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	var req deleteExpenseRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	item := sanitizeInput(req.Item)
	if strings.TrimSpace(item) == "" {
		writeError(w, r, log.OpDelete, core.ErrEmptyItem)
		return
	}

	res, err := s.ledger.Delete(r.Context(), ledger.DeleteCriteria{Item: item, Amount: req.Amount})
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	dir, err := s.ledger.Categories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if dir == nil {
		dir = core.Directory{}
	}
	writeJSON(w, http.StatusOK, dir)
}

func (s *Server) handleReplaceCategories(w http.ResponseWriter, r *http.Request) {
	var dir core.Directory
	if err := DecodeJSONBody(r, &dir); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if dir == nil {
		dir = core.Directory{}
	}
	if err := s.ledger.SaveCategories(r.Context(), dir); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}
