package http

import (
	"net/http"

	"kobo/internal/core"
	klog "kobo/internal/log"
	"kobo/internal/period"
	"kobo/internal/session"
)

type sessionResponse struct {
	State             session.State `json:"state"`
	NeedsVerification bool          `json:"needs_verification"`
	TTLSeconds        int64         `json:"ttl_seconds"`
}

type onboardingResponse struct {
	Settings          core.Settings `json:"settings"`
	CategoriesCreated int           `json:"categories_created"`
}

// requireUnlocked answers 423 while the account's PIN gate is locked.
func (s *Server) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := accountFrom(r.Context())
		state, err := s.gate.Status(r.Context(), account)
		if err != nil {
			s.fail(w, r, klog.OpVerify, err)
			return
		}
		s.track(account, state)
		if state == session.Locked {
			writeError(w, r, http.StatusLocked, codeLocked, "session locked, verify the PIN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) track(account core.AccountID, state session.State) {
	if s.monitor != nil {
		s.monitor.Track(account, state)
	}
}

func (s *Server) sessionBody(state session.State) sessionResponse {
	return sessionResponse{
		State:             state,
		NeedsVerification: state == session.Locked,
		TTLSeconds:        int64(s.gate.TTL().Seconds()),
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	state, err := s.gate.Status(r.Context(), account)
	if err != nil {
		s.fail(w, r, klog.OpVerify, err)
		return
	}
	s.track(account, state)
	writeJSON(w, http.StatusOK, s.sessionBody(state))
}

// handleVerify checks a PIN. A mismatch is 401 without further detail.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpVerify, err)
		return
	}
	account := accountFrom(ctx)
	ok, err := s.gate.Verify(ctx, account, req.PIN)
	if err != nil {
		s.fail(w, r, klog.OpVerify, err)
		return
	}
	if !ok {
		klog.FromContext(ctx).WarnContext(ctx, "PIN verification failed", klog.FieldOperation, klog.OpVerify)
		writeError(w, r, http.StatusUnauthorized, codePINMismatch, "pin does not match")
		return
	}
	s.pinLimits.Reset(s.pinKey(r))
	s.track(account, session.Unlocked)
	writeJSON(w, http.StatusOK, s.sessionBody(session.Unlocked))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Load(r.Context(), accountFrom(r.Context()))
	if err != nil {
		s.fail(w, r, klog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetDuration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	d, err := period.ParseDuration(req.Duration)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	st, err := s.settings.SetBudgetDuration(r.Context(), accountFrom(r.Context()), d)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetPIN sets or changes the PIN. Changing requires current_pin.
func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN        string `json:"pin"`
		CurrentPIN string `json:"current_pin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	account := accountFrom(r.Context())
	st, err := s.settings.SetPIN(r.Context(), account, req.PIN, req.CurrentPIN)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	s.track(account, session.Unlocked)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetPINEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	st, err := s.settings.SetPINEnabled(r.Context(), accountFrom(r.Context()), req.Enabled)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleOnboarding marks onboarding done. With default_categories set it
// first seeds the starter categories for an account that has none.
func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		DefaultCategories bool `json:"default_categories"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, klog.OpUpdate, err)
			return
		}
	}
	account := accountFrom(ctx)

	var resp onboardingResponse
	if req.DefaultCategories {
		n, err := s.gw.EnsureDefaultCategories(ctx, account)
		if err != nil {
			s.fail(w, r, klog.OpCreate, err)
			return
		}
		resp.CategoriesCreated = n
		s.invalidate(account)
	}
	st, err := s.settings.CompleteOnboarding(ctx, account)
	if err != nil {
		s.fail(w, r, klog.OpUpdate, err)
		return
	}
	resp.Settings = st
	writeJSON(w, http.StatusOK, resp)
}
