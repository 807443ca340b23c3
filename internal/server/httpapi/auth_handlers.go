package httpapi

import (
	"encoding/json"
	"net/http"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type perksResponse struct {
	Perks []string `json:"perks"`
}

// decodeJSON reads a JSON body into dst and validates it. It writes the
// 400 reply itself and reports false on failure.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, userResponse{ID: user.ID, Username: user.UserName}, http.StatusCreated)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, http.StatusOK)
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, http.StatusOK)
}

func (h *Handlers) AccountPerks(w http.ResponseWriter, r *http.Request) {
	names, err := h.users.Perks(r.Context(), requester(r).UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, perksResponse{Perks: names}, http.StatusOK)
}
