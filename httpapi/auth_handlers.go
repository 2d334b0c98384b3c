package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"careslot/auth"
)

type principalSummary struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	UserType    string   `json:"user_type"`
	Active      bool     `json:"active"`
	Verified    *bool    `json:"verified,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Tier        string   `json:"tier,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func summarize(p auth.Principal) principalSummary {
	acct := p.Acct()
	s := principalSummary{
		ID:        acct.ID,
		Email:     acct.Email,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		UserType:  string(p.Partition),
		Active:    acct.Active,
	}
	switch p.Partition {
	case auth.PartitionProvider:
		s.Verified = &p.Provider.Verified
		s.Rating = &p.Provider.Rating
	case auth.PartitionAdmin:
		s.Tier = string(p.Admin.Tier)
		s.Permissions = p.Admin.Permissions
	}
	return s
}

type sessionResponse struct {
	Token     string           `json:"token"`
	Principal principalSummary `json:"principal"`
}

func (s *Server) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var params auth.RegisterClientParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, s.logger, err)
		return
	}
	res, err := s.auth.RegisterClient(r.Context(), params)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: res.Token, Principal: summarize(res.Principal)})
}

func (s *Server) handleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	var params auth.RegisterProviderParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, s.logger, err)
		return
	}
	res, err := s.auth.RegisterProvider(r.Context(), params)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: res.Token, Principal: summarize(res.Principal)})
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var params auth.RegisterAdminParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, s.logger, err)
		return
	}
	res, err := s.auth.RegisterAdmin(r.Context(), params)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: res.Token, Principal: summarize(res.Principal)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		UserType auth.Partition `json:"user_type"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	res, err := s.auth.Login(r.Context(), body.UserType, body.Email, body.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: res.Token, Principal: summarize(res.Principal)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(p))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), p, body.CurrentPassword, body.NewPassword); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePartition(r.Context(), auth.PartitionProvider)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		Availability []auth.AvailabilityWindow `json:"availability"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	provider, err := s.auth.UpdateAvailability(r.Context(), p.ID(), body.Availability)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(auth.Principal{Partition: auth.PartitionProvider, Provider: &provider}))
}

func (s *Server) handleVerifyProvider(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequirePartition(r.Context(), auth.PartitionAdmin); err != nil {
		writeError(w, s.logger, err)
		return
	}
	provider, err := s.auth.VerifyProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(auth.Principal{Partition: auth.PartitionProvider, Provider: &provider}))
}

func (s *Server) handleSetAccountActive(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequirePartition(r.Context(), auth.PartitionAdmin); err != nil {
		writeError(w, s.logger, err)
		return
	}
	var body struct {
		UserType auth.Partition `json:"user_type"`
		Active   bool           `json:"active"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	principal, err := s.auth.SetAccountActive(r.Context(), body.UserType, chi.URLParam(r, "id"), body.Active)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(principal))
}
