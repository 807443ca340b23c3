package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/gorilla/mux"
)

type createLinkRequest struct {
	ImageID string `json:"image" validate:"required"`
	Seconds int    `json:"seconds" validate:"required"`
}

type linkResponse struct {
	ID       string    `json:"id"`
	ImageID  string    `json:"image"`
	Created  time.Time `json:"created"`
	Expiring time.Time `json:"expiring"`
	URL      string    `json:"url"`
}

func (h *Handlers) linkResponse(l *models.ExpiringLink) linkResponse {
	return linkResponse{
		ID:       l.ID,
		ImageID:  l.ImageID,
		Created:  l.Created,
		Expiring: l.Expiring,
		URL:      h.links.URL(l),
	}
}

func (h *Handlers) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	created, err := h.links.RequestCreate(r.Context(), requester(r), req.ImageID, req.Seconds)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.linkResponse(created.Link), http.StatusCreated)
}

func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.List(r.Context(), requester(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.linkResponse(l))
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *Handlers) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.Context(), requester(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, h.linkResponse(link), http.StatusOK)
}

func (h *Handlers) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Delete(r.Context(), requester(r), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
