package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/perks"
	"github.com/dmitrijs2005/imagehost/internal/server/services"
	"github.com/gorilla/mux"
)

// uploadFormField is the multipart field carrying the image.
const uploadFormField = "image"

// multipartOverhead is allowed on top of the image size for form framing.
const multipartOverhead = 1 << 20

type imageResponse struct {
	ID          string            `json:"id"`
	ContentType string            `json:"content_type"`
	Width       *int              `json:"width,omitempty"`
	Height      *int              `json:"height,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Original    string            `json:"original,omitempty"`
	Thumbnails  map[string]string `json:"thumbnails"`
}

// mediaView decides which media URLs a requester is shown.
type mediaView struct {
	base     string
	staff    bool
	set      perks.Set
	original bool
	heights  []int
}

func (h *Handlers) newMediaView(ctx context.Context, id auth.Identity) (*mediaView, error) {
	v := &mediaView{base: strings.TrimRight(h.publicBaseURL, "/"), staff: id.IsStaff}
	if h.catalog != nil {
		v.heights = h.catalog.Heights()
	}
	if id.IsStaff || h.perkSets == nil {
		v.staff = true
		return v, nil
	}
	set, err := h.perkSets.PerksOf(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	v.set = set
	v.original = set.Has(perks.Perk{Kind: perks.OriginalImage})
	return v, nil
}

func (v *mediaView) render(img *models.Image) imageResponse {
	resp := imageResponse{
		ID:          img.ID,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		CreatedAt:   img.CreatedAt,
		Thumbnails:  map[string]string{},
	}
	if v.staff || v.original {
		resp.Original = fmt.Sprintf("%s/media/%s", v.base, img.ID)
	}
	for _, height := range v.heights {
		if v.staff || v.set.Has(perks.Perk{Kind: perks.Thumbnail, Height: height}) {
			resp.Thumbnails[strconv.Itoa(height)] = fmt.Sprintf("%s/media/%s/%d", v.base, img.ID, height)
		}
	}
	return resp
}

func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeError(w, fmt.Sprintf("missing %q file field", uploadFormField), http.StatusBadRequest)
		return
	}
	defer file.Close()

	id := requester(r)
	img, err := h.images.Upload(r.Context(), id, header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	view, err := h.newMediaView(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, view.render(img), http.StatusCreated)
}

func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	images, err := h.images.List(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	view, err := h.newMediaView(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]imageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, view.render(img))
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	img, err := h.images.Get(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	view, err := h.newMediaView(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, view.render(img), http.StatusOK)
}

func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.images.Delete(r.Context(), requester(r), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MediaOriginal(w http.ResponseWriter, r *http.Request) {
	a, err := h.images.OpenOriginal(r.Context(), requester(r), mux.Vars(r)["id"])
	h.serveArtifact(w, r, a, err)
}

func (h *Handlers) MediaThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	height, err := strconv.Atoi(vars["height"])
	if err != nil || height <= 0 {
		writeError(w, "invalid height", http.StatusBadRequest)
		return
	}
	a, err := h.images.OpenThumbnail(r.Context(), requester(r), vars["id"], height)
	h.serveArtifact(w, r, a, err)
}

func (h *Handlers) RedeemLink(w http.ResponseWriter, r *http.Request) {
	a, err := h.images.OpenLink(r.Context(), mux.Vars(r)["name"])
	h.serveArtifact(w, r, a, err)
}

func (h *Handlers) serveArtifact(w http.ResponseWriter, r *http.Request, a *services.Artifact, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer a.Body.Close()

	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, a.Body); err != nil {
		h.logger.Warn(r.Context(), "media copy interrupted", "path", r.URL.Path, "error", err)
	}
}
