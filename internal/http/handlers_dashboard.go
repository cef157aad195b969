package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(newDashboardResponse(s.deps.Dashboard.Dashboard(r.Context(), uid))).Write(w)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(newReportResponse(s.deps.Dashboard.Report(r.Context(), uid))).Write(w)
}

// handleRates returns the latest rates for ?base=, defaulting to the user's
// profile currency.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	base := core.NormalizeCurrency(r.URL.Query().Get("base"))
	if base == "" {
		base = s.profileCurrency(r, uid)
	}
	if !core.ValidCurrencyCode(base) {
		ValidationErrorResponse(map[string]string{"base": "must be a three-letter currency code"}).Write(w)
		return
	}

	rs, err := s.deps.Rates.FetchRates(r.Context(), base)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	out := ratesResponse{Base: rs.Base, Rates: make(map[string]string, len(rs.Rates)), FetchedAt: rs.FetchedAt}
	for code, rate := range rs.Rates {
		out.Rates[code] = rate.String()
	}
	NewResponse().JSON(out).Write(w)
}

// handleConvert converts ?amount= from ?from= to ?to=. A missing from
// defaults to the user's profile currency.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from := core.NormalizeCurrency(q.Get("from"))
	if from == "" {
		from = s.profileCurrency(r, uid)
	}
	to := core.NormalizeCurrency(q.Get("to"))

	fields := make(map[string]string)
	if !core.ValidCurrencyCode(from) {
		fields["from"] = "must be a three-letter currency code"
	}
	if !core.ValidCurrencyCode(to) {
		fields["to"] = "must be a three-letter currency code"
	}
	amount, err := core.ParseAmount(strings.TrimSpace(q.Get("amount")))
	if err != nil {
		fields["amount"] = err.Error()
	}
	if len(fields) > 0 {
		ValidationErrorResponse(fields).Write(w)
		return
	}

	select {
	case res := <-s.deps.Rates.ConvertAsync(r.Context(), amount, from, to):
		if res.Err != nil {
			errorFor(r, res.Err).Write(w)
			return
		}
		NewResponse().JSON(convertResponse{
			From:    from,
			To:      to,
			Amount:  money(amount),
			Result:  money(res.Amount),
			Display: currency.Format(res.Amount, to),
		}).Write(w)
	case <-r.Context().Done():
		UnavailableError("conversion canceled").Write(w)
	}
}

// profileCurrency falls back to the configured default when the profile
// cannot be read.
func (s *Server) profileCurrency(r *http.Request, uid string) string {
	p, err := s.deps.Profiles.Get(r.Context(), uid)
	if err != nil || p.Currency == "" {
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Profile unavailable, using default currency",
				log.FieldUserID, uid,
				log.FieldError, err)
		}
		return s.defaultCurrency
	}
	return p.Currency
}
