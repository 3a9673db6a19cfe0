package http

import (
	"net/http"
	"strings"

	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

func (s *Server) handleSpent(w http.ResponseWriter, r *http.Request) {
	rq, err := ParseRangeQuery(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	report, err := s.queries.CalculateSpent(r.Context(), rq)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	rq, err := ParseRangeQuery(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	days, err := s.queries.DailyTotals(r.Context(), rq)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	if days == nil {
		days = []core.DayTotal{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query(), s.now().In(s.loc))
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	totals, err := s.queries.CategoryTotals(r.Context(), mp.Month, mp.Year)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd services.Command
	if err := DecodeJSONBody(r, &cmd); err != nil {
		writeError(w, r, log.OpDispatch, err)
		return
	}
	reply, err := s.commands.Dispatch(r.Context(), cmd)
	if err != nil {
		writeError(w, r, log.OpDispatch, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeError(w, r, log.OpDispatch, err)
		return
	}
	text := sanitizeInput(req.Text)
	if strings.TrimSpace(text) == "" {
		BadRequestError("text is required").Write(w)
		return
	}
	reply, err := s.commands.Chat(r.Context(), s.interp, text)
	if err != nil {
		writeError(w, r, log.OpDispatch, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
