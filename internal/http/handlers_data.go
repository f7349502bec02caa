package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kobo/internal/core"
	"kobo/internal/gateway"
	klog "kobo/internal/log"
	"kobo/internal/period"
)

type periodResponse struct {
	Duration core.BudgetDuration `json:"duration"`
	Period   core.Period         `json:"period"`
	Label    string              `json:"label"`
}

type transactionRequest struct {
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Type        string     `json:"type"`
	CategoryID  string     `json:"category_id"`
	Category    string     `json:"category"`
	Payee       string     `json:"payee"`
	Description string     `json:"description"`
}

type categoryRequest struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Icon         string     `json:"icon"`
	DefaultLimit core.Money `json:"budget_limit"`
}

type overrideRequest struct {
	CategoryID  string     `json:"category_id"`
	Amount      core.Money `json:"amount"`
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`
}

type investmentRequest struct {
	ID             string     `json:"id"`
	Category       string     `json:"category"`
	TargetAmount   core.Money `json:"target_amount"`
	CurrentBalance core.Money `json:"current_balance"`
}

// handleSnapshot serves everything a dashboard needs. A failed fetch still
// answers 200 with an empty snapshot; the cause is only logged.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := parsePeriod(r.URL.Query())
	if err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}
	snap, err := s.gw.FetchAll(ctx, accountFrom(ctx), p)
	if err != nil {
		klog.FromContext(ctx).WarnContext(ctx, "Snapshot fetch failed, serving empty snapshot", klog.FieldError, err)
		snap = gateway.EmptySnapshot()
		snap.Period = p
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePeriod resolves a budgeting period without touching any account:
// the current one, or the neighbour of start..end when step is given.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d := core.DefaultBudgetDuration
	if v := q.Get("duration"); v != "" {
		var err error
		if d, err = period.ParseDuration(v); err != nil {
			s.fail(w, r, klog.OpRead, err)
			return
		}
	}

	given, err := parsePeriod(q)
	if err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}
	var p core.Period
	if given != nil {
		p = *given
	} else if p, err = period.Current(d, s.now()); err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}

	switch step := strings.ToLower(strings.TrimSpace(q.Get("step"))); step {
	case "", "current":
	case "next":
		p, err = period.Next(d, p)
	case "previous", "prev":
		p, err = period.Previous(d, p)
	default:
		err = fmt.Errorf("%w: unknown step %q", errBadRequest, step)
	}
	if err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, periodResponse{Duration: d, Period: p, Label: period.Label(d, p)})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.nav.View(r.Context(), accountFrom(r.Context()))
	s.respondView(w, r, view, err)
}

func (s *Server) handleViewCurrent(w http.ResponseWriter, r *http.Request) {
	view, err := s.nav.Current(r.Context(), accountFrom(r.Context()))
	s.respondView(w, r, view, err)
}

func (s *Server) handleViewNext(w http.ResponseWriter, r *http.Request) {
	view, err := s.nav.Next(r.Context(), accountFrom(r.Context()))
	s.respondView(w, r, view, err)
}

func (s *Server) handleViewPrevious(w http.ResponseWriter, r *http.Request) {
	view, err := s.nav.Previous(r.Context(), accountFrom(r.Context()))
	s.respondView(w, r, view, err)
}

// respondView answers with the view. A view whose fetch failed carries an
// empty snapshot and is still served; a superseded one is a conflict.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, view gateway.View, err error) {
	ctx := r.Context()
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrSuperseded):
		s.fail(w, r, klog.OpRead, err)
		return
	case !view.Period.Start.IsZero():
		klog.FromContext(ctx).WarnContext(ctx, "View fetch failed, serving empty snapshot",
			klog.NewFields().WithPeriod(view.Period).WithError(err).ToSlice()...)
	default:
		s.fail(w, r, klog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := parsePeriod(r.URL.Query())
	if err != nil {
		s.fail(w, r, klog.OpList, err)
		return
	}
	txs, err := s.gw.Transactions(ctx, accountFrom(ctx), p)
	if err != nil {
		s.fail(w, r, klog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tx, err := s.gw.Transaction(ctx, accountFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpCreate, err)
		return
	}
	in := gateway.TransactionInput{
		Amount:      req.Amount,
		CategoryID:  sanitizeInput(req.CategoryID),
		Category:    sanitizeInput(req.Category),
		Payee:       sanitizeInput(req.Payee),
		Description: sanitizeInput(req.Description),
	}
	if req.Type != "" {
		t, err := core.ParseTransactionType(req.Type)
		if err != nil {
			s.fail(w, r, klog.OpCreate, err)
			return
		}
		in.Type = t
	}
	date, err := optionalTime(req.Date, false)
	if err != nil {
		s.fail(w, r, klog.OpCreate, err)
		return
	}
	in.Date = date

	account := accountFrom(ctx)
	tx, err := s.gw.RecordTransaction(ctx, account, in)
	if err != nil {
		s.fail(w, r, klog.OpCreate, err)
		return
	}
	s.invalidate(account)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	account := accountFrom(ctx)
	c, err := s.gw.UpsertCategory(ctx, core.Category{
		ID:           sanitizeInput(req.ID),
		AccountID:    account,
		Name:         sanitizeInput(req.Name),
		Type:         core.CategoryType(sanitizeInput(req.Type)),
		Icon:         sanitizeInput(req.Icon),
		DefaultLimit: req.DefaultLimit,
	})
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	s.invalidate(account)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account := accountFrom(ctx)
	if err := s.gw.DeleteCategory(ctx, account, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, klog.OpDelete, err)
		return
	}
	s.invalidate(account)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	start, err := optionalTime(req.PeriodStart, false)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	end, err := optionalTime(req.PeriodEnd, true)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}

	account := accountFrom(ctx)
	o, err := s.gw.SetBudgetOverride(ctx, account, sanitizeInput(req.CategoryID), req.Amount, core.Period{Start: start, End: end})
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	s.invalidate(account)
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleUpsertInvestment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req investmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	account := accountFrom(ctx)
	inv, err := s.gw.UpsertInvestment(ctx, core.Investment{
		ID:             sanitizeInput(req.ID),
		AccountID:      account,
		Category:       sanitizeInput(req.Category),
		TargetAmount:   req.TargetAmount,
		CurrentBalance: req.CurrentBalance,
	})
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	s.invalidate(account)
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account := accountFrom(ctx)
	if err := s.gw.DeleteInvestment(ctx, account, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, klog.OpDelete, err)
		return
	}
	s.invalidate(account)
	w.WriteHeader(http.StatusNoContent)
}
