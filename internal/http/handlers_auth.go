package http

import (
	"net/http"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}

	sess, err := s.deps.Auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newSessionResponse(sess)).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}

	sess, err := s.deps.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newSessionResponse(sess)).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := s.deps.Auth.User(r.Context(), id)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newUserResponse(u)).Write(w)
}
