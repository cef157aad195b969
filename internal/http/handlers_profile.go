package http

import "net/http"

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Profiles.Get(r.Context(), uid)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newProfileResponse(p)).Write(w)
}

func (s *Server) handleUpdateSalary(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req salaryRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}
	p, err := s.deps.Profiles.UpdateSalary(r.Context(), uid, string(req.MonthlySalary))
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newProfileResponse(p)).Write(w)
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req currencyRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}
	p, err := s.deps.Profiles.UpdateCurrency(r.Context(), uid, req.Currency)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newProfileResponse(p)).Write(w)
}
