package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/gorilla/mux"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	SecretKey []byte
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	Logger  logging.Logger
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *Handlers, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	r := mux.NewRouter()
	r.Use(Recovery(logger), RequestLogging(logger))

	r.HandleFunc("/health", health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	// Public link redemption ignores any credentials.
	r.HandleFunc("/link/{name}", h.RedeemLink).Methods(http.MethodGet)

	identified := r.NewRoute().Subrouter()
	identified.Use(Identify(opts.SecretKey))

	media := identified.PathPrefix("/media").Subrouter()
	media.HandleFunc("/{id}", h.MediaOriginal).Methods(http.MethodGet)
	media.HandleFunc("/{id}/{height:[0-9]+}", h.MediaThumbnail).Methods(http.MethodGet)

	api := identified.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.RefreshToken).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(RequireIdentity)
	private.HandleFunc("/account/perks", h.AccountPerks).Methods(http.MethodGet)
	private.HandleFunc("/images", h.ListImages).Methods(http.MethodGet)
	private.HandleFunc("/images", h.UploadImage).Methods(http.MethodPost)
	private.HandleFunc("/images/{id}", h.GetImage).Methods(http.MethodGet)
	private.HandleFunc("/images/{id}", h.DeleteImage).Methods(http.MethodDelete)
	private.HandleFunc("/expiring", h.ListLinks).Methods(http.MethodGet)
	private.HandleFunc("/expiring", h.CreateLink).Methods(http.MethodPost)
	private.HandleFunc("/expiring/{id}", h.GetLink).Methods(http.MethodGet)
	private.HandleFunc("/expiring/{id}", h.DeleteLink).Methods(http.MethodDelete)

	return r
}
