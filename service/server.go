package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"socialgate/internal"
)

// Server exposes the gateway operations over HTTP. Routing uses method-aware
// patterns; authentication is a shared API key checked on every route except
// the health probe.
type Server struct {
	gateway     *Gateway
	apiKey      string
	credentials map[string]bool
	httpSrv     *http.Server
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host   string
	Port   int
	APIKey string

	// Credentials reports which platforms have credentials configured,
	// surfaced on the health endpoint.
	Credentials map[string]bool
}

// NewServer builds the server and its route table.
func NewServer(cfg ServerConfig, gateway *Gateway) *Server {
	s := &Server{gateway: gateway, apiKey: cfg.APIKey, credentials: cfg.Credentials}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /{platform}/init", s.auth(s.handleInitSession))

	mux.Handle("GET /tiktok/video/{id}", s.auth(s.handleTikTokVideo))
	mux.Handle("POST /tiktok/video/url", s.auth(s.handleTikTokVideoByURL))
	mux.Handle("GET /tiktok/video/{id}/comments", s.auth(s.handleTikTokVideoComments))
	mux.Handle("GET /tiktok/user/{username}", s.auth(s.handleTikTokUser))
	mux.Handle("GET /tiktok/user/{username}/videos", s.auth(s.handleTikTokUserVideos))

	mux.Handle("GET /instagram/user/{username}", s.auth(s.handleInstagramUser))
	mux.Handle("GET /instagram/user/{username}/posts", s.auth(s.handleInstagramUserPosts))
	mux.Handle("GET /instagram/user/{username}/stories", s.auth(s.handleInstagramUserStories))
	mux.Handle("GET /instagram/user/{username}/followers", s.auth(s.handleInstagramFollowers))
	mux.Handle("GET /instagram/user/{username}/following", s.auth(s.handleInstagramFollowing))
	mux.Handle("GET /instagram/post/{id}", s.auth(s.handleInstagramPost))
	mux.Handle("POST /instagram/post/url", s.auth(s.handleInstagramPostByURL))
	mux.Handle("GET /instagram/post/{id}/comments", s.auth(s.handleInstagramPostComments))
	mux.Handle("GET /instagram/post/{id}/likers", s.auth(s.handleInstagramPostLikers))
	mux.Handle("GET /instagram/hashtag/{name}/posts", s.auth(s.handleInstagramHashtagPosts))

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for serving through a custom listener.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	internal.LogInfo("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// auth enforces the X-API-Key header. An empty configured key disables
// authentication, matching local development use.
func (s *Server) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing API key"})
				return
			}
		}
		next(w, r)
	})
}

type errorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Platform   string `json:"platform,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type healthBody struct {
	Status      string                   `json:"status"`
	Sessions    map[string]sessionHealth `json:"sessions"`
	Credentials map[string]bool          `json:"credentials_configured,omitempty"`
}

type sessionHealth struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	LastUsed  string `json:"last_used,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the normalized taxonomy onto HTTP statuses. Session
// problems surface as 503 so callers know to back off rather than fix
// their request.
func writeError(w http.ResponseWriter, err error) {
	var verr *internal.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error()})
		return
	}

	gerr, ok := internal.AsGatewayError(err)
	if !ok {
		internal.LogError("unclassified failure: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	internal.LogGatewayError(gerr)

	status := http.StatusServiceUnavailable
	switch gerr.Kind {
	case internal.ErrNotFound:
		status = http.StatusNotFound
	case internal.ErrRateLimited:
		status = http.StatusTooManyRequests
		if gerr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(gerr.RetryAfter.Seconds())))
		}
	case internal.ErrPlatformUnavailable:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{
		Error:      gerr.Message,
		Kind:       gerr.Kind.String(),
		Platform:   string(gerr.Platform),
		Suggestion: gerr.Suggestion,
	})
}

func writeResult[T any](w http.ResponseWriter, result T, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func countParam(r *http.Request) int {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Sessions: map[string]sessionHealth{}, Credentials: s.credentials}
	for platform, session := range s.gateway.Sessions() {
		h := sessionHealth{State: session.State.String(), LastError: session.LastError}
		if !session.LastUsedAt.IsZero() {
			h.LastUsed = session.LastUsedAt.UTC().Format(time.RFC3339)
		}
		body.Sessions[string(platform)] = h
	}
	writeJSON(w, http.StatusOK, body)
}

type initBody struct {
	Platform string `json:"platform"`
	State    string `json:"state"`
}

func (s *Server) handleInitSession(w http.ResponseWriter, r *http.Request) {
	p, err := internal.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeError(w, internal.NewValidationError("platform", "must be tiktok or instagram"))
		return
	}
	session, err := s.gateway.InitSession(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initBody{Platform: string(p), State: session.State.String()})
}

type urlRequest struct {
	URL string `json:"url"`
}

func decodeURLRequest(r *http.Request) (string, error) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", internal.NewValidationError("body", "expected JSON object with a url field")
	}
	if req.URL == "" {
		return "", internal.NewValidationError("url", "must not be empty")
	}
	return req.URL, nil
}

func (s *Server) handleTikTokVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.gateway.TikTokVideoByID(r.Context(), r.PathValue("id"))
	writeResult(w, video, err)
}

func (s *Server) handleTikTokVideoByURL(w http.ResponseWriter, r *http.Request) {
	rawURL, err := decodeURLRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	video, err := s.gateway.TikTokVideoByURL(r.Context(), rawURL)
	writeResult(w, video, err)
}

func (s *Server) handleTikTokVideoComments(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.TikTokVideoComments(r.Context(), r.PathValue("id"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleTikTokUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.TikTokUser(r.Context(), r.PathValue("username"))
	writeResult(w, user, err)
}

func (s *Server) handleTikTokUserVideos(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.TikTokUserVideos(r.Context(), r.PathValue("username"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.InstagramUser(r.Context(), r.PathValue("username"))
	writeResult(w, user, err)
}

func (s *Server) handleInstagramUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramUserPosts(r.Context(), r.PathValue("username"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramUserStories(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramUserStories(r.Context(), r.PathValue("username"))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramFollowers(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramFollowers(r.Context(), r.PathValue("username"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramFollowing(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramFollowing(r.Context(), r.PathValue("username"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramPost(w http.ResponseWriter, r *http.Request) {
	media, err := s.gateway.InstagramPost(r.Context(), r.PathValue("id"))
	writeResult(w, media, err)
}

func (s *Server) handleInstagramPostByURL(w http.ResponseWriter, r *http.Request) {
	rawURL, err := decodeURLRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	media, err := s.gateway.InstagramPostByURL(r.Context(), rawURL)
	writeResult(w, media, err)
}

func (s *Server) handleInstagramPostComments(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramPostComments(r.Context(), r.PathValue("id"), countParam(r), r.URL.Query().Get("cursor"))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramPostLikers(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramPostLikers(r.Context(), r.PathValue("id"), countParam(r))
	writeResult(w, page, err)
}

func (s *Server) handleInstagramHashtagPosts(w http.ResponseWriter, r *http.Request) {
	page, err := s.gateway.InstagramHashtagPosts(r.Context(), r.PathValue("name"), countParam(r))
	writeResult(w, page, err)
}
