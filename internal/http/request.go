package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kobo/internal/core"
	klog "kobo/internal/log"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

const dayLayout = "2006-01-02"

// endOfDay is the inclusive end of a day given as a date only.
const endOfDay = 24*time.Hour - time.Millisecond

var errBadRequest = errors.New("bad request")

type contextKey string

const accountKey contextKey = "account_id"

// requireAccount reads X-Account-ID and rejects requests without it.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := core.AccountID(sanitizeInput(r.Header.Get(HeaderAccountID)))
		if err := account.Validate(); err != nil {
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "missing "+HeaderAccountID+" header")
			return
		}
		ctx := context.WithValue(r.Context(), accountKey, account)
		l := klog.FromContext(ctx).With(klog.FieldAccountID, string(account))
		ctx = klog.NewContext(ctx, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFrom(ctx context.Context) core.AccountID {
	a, _ := ctx.Value(accountKey).(core.AccountID)
	return a
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// parseTime accepts RFC 3339 instants and plain dates. A plain date used as
// an upper bound means the end of that day.
func parseTime(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither a date nor an RFC 3339 time", errBadRequest, s)
	}
	if upper {
		t = t.Add(endOfDay)
	}
	return t.UTC(), nil
}

// parsePeriod reads start and end from the query. Both absent means no
// range; only one of them is an error.
func parsePeriod(q url.Values) (*core.Period, error) {
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: start and end go together", core.ErrInvalidPeriod)
	}
	s, err := parseTime(start, false)
	if err != nil {
		return nil, err
	}
	e, err := parseTime(end, true)
	if err != nil {
		return nil, err
	}
	p := core.Period{Start: s, End: e}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// optionalTime parses an optional bound; empty gives the zero time.
func optionalTime(s string, upper bool) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseTime(s, upper)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
