package handlers

import (
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"linkfeed/auth"
	"net/http"
)

type RouterOptions struct {
	Verifier          *auth.Verifier
	TrustedUserHeader string
	CORSOrigins       []string
}

// NewRouter mounts the API and wraps it, outermost first, in panic recovery, request ids,
// the access log, principal resolution, CORS and tracing.
func NewRouter(h *HTTPHandler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	api.HandleFunc("/posts", h.HandleListPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts", h.HandleCreatePost).Methods(http.MethodPost)
	api.HandleFunc("/posts/{postId}", h.HandleGetPost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{postId}", h.HandleEditPost).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/posts/{postId}", h.HandleDeletePost).Methods(http.MethodDelete)
	api.HandleFunc("/posts/{postId}/like", h.HandleToggleLike).Methods(http.MethodPut)
	api.HandleFunc("/posts/{postId}/comments", h.HandleAddComment).Methods(http.MethodPost)

	api.HandleFunc("/users/search/{query}", h.HandleSearchUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}", h.HandleGetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/posts", h.HandleGetUserPosts).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = otelhttp.NewHandler(handler, "linkfeed.http")
	handler = cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler(handler)
	handler = auth.Middleware(opts.Verifier, opts.TrustedUserHeader, WriteError)(handler)
	handler = AccessLog(handler)
	handler = WithRequestID(handler)
	handler = Recoverer(handler)
	return handler
}
