package api

import (
	"net/http"
	"time"

	"hanapbahay/internal/models"
	"hanapbahay/internal/service"
)

// tokenTTL is the lifetime of tokens issued at registration.
const tokenTTL = 30 * 24 * time.Hour

type userRequest struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type telegramRequest struct {
	ChatID int64 `json:"chat_id"`
}

type profileRequest struct {
	OwnerID      int64  `json:"owner_id"`
	BusinessName string `json:"business_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Address      string `json:"address"`
}

type accountRequest struct {
	OwnerID       int64  `json:"owner_id"`
	Method        string `json:"method"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	IsDefault     bool   `json:"is_default"`
}

func (req accountRequest) account() *models.PaymentAccount {
	return &models.PaymentAccount{
		OwnerID:       req.OwnerID,
		Method:        req.Method,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		IsDefault:     req.IsDefault,
	}
}

// handleRegister creates a tenant or owner. With JWT auth enabled the
// response carries a bearer token for the new user.
func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user := &models.User{Role: req.Role, Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := s.deps.Accounts.Register(r.Context(), user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{"user": user}
	if s.cfg.Auth.Enabled && s.cfg.Auth.JWTSecret != "" {
		token, err := IssueToken(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer, service.Actor{UserID: user.ID, Role: user.Role}, tokenTTL)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		resp["token"] = token
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user, err := s.deps.Accounts.GetUser(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user := &models.User{ID: id, Role: req.Role, Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := s.deps.Accounts.UpdateUser(r.Context(), actor(r), user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleLinkTelegram(w http.ResponseWriter, r *http.Request) {
	var req telegramRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Accounts.LinkTelegram(r.Context(), actor(r), req.ChatID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	profile := &models.OwnerProfile{
		OwnerID:      req.OwnerID,
		BusinessName: req.BusinessName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Address:      req.Address,
	}
	if err := s.deps.Accounts.UpsertProfile(r.Context(), actor(r), profile); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	profile, err := s.deps.Accounts.GetProfile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	accounts, err := s.deps.Accounts.ListAccounts(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *HTTPServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	account := req.account()
	if err := s.deps.Accounts.CreateAccount(r.Context(), actor(r), account); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *HTTPServer) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	account := req.account()
	account.ID = id
	if err := s.deps.Accounts.UpdateAccount(r.Context(), actor(r), account); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *HTTPServer) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Accounts.DeleteAccount(r.Context(), actor(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
