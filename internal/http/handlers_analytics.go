package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"kobo/internal/aggregate"
	"kobo/internal/core"
	klog "kobo/internal/log"
	"kobo/internal/period"
)

// parseFilter reads lookback, type, category, from and to.
func parseFilter(q map[string][]string) (aggregate.Filter, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var f aggregate.Filter
	if v := get("lookback"); v != "" {
		l, err := period.ParseLookback(v)
		if err != nil {
			return f, err
		}
		f.Lookback = l
	}
	if v := get("type"); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	f.Category = sanitizeInput(get("category"))

	var err error
	if f.From, err = optionalTime(get("from"), false); err != nil {
		return f, err
	}
	if f.To, err = optionalTime(get("to"), true); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("%w: to is before from", core.ErrInvalidPeriod)
	}
	return f, nil
}

func (s *Server) analyticsKey(account core.AccountID, rep aggregate.Report, r *http.Request) string {
	return fmt.Sprintf("%s|%d|%s|%s", account, s.gw.Version(account), rep, r.URL.Query().Encode())
}

// invalidate drops the account's cached analytics. Keys also carry the data
// version, so this only frees memory early.
func (s *Server) invalidate(account core.AccountID) {
	s.analytics.DeletePrefix(string(account) + "|")
}

func (s *Server) handleAnalytics(rep aggregate.Report) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account := accountFrom(ctx)

		f, err := parseFilter(r.URL.Query())
		if err != nil {
			s.fail(w, r, klog.OpRead, err)
			return
		}

		key := s.analyticsKey(account, rep, r)
		if body, ok := s.analytics.Get(key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, http.StatusOK, body)
			return
		}

		txs, err := s.gw.Transactions(ctx, account, nil)
		if err != nil {
			s.fail(w, r, klog.OpRead, err)
			return
		}
		body, err := json.Marshal(aggregate.Compute(rep, txs, f, s.now()))
		if err != nil {
			s.fail(w, r, klog.OpRead, err)
			return
		}
		body = append(body, '\n')
		s.analytics.Set(key, body)
		w.Header().Set("X-Cache", "MISS")
		writeRaw(w, http.StatusOK, body)
	}
}
