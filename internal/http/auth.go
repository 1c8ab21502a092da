package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/model"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in model.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.svc.Register(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in model.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.svc.Login(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

// Tokens are stateless; logout only acknowledges so clients can drop theirs.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, "Logged out")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in model.ForgotPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.ForgotPassword(r.Context(), in); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "If that email is registered, a reset link has been sent")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in model.ResetPasswordInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.svc.Me(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, account)
}
