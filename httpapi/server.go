// Package httpapi is the request/response surface: auth, directory and
// message operations over JSON, uploads over multipart, plus the websocket
// upgrade endpoint. All domain rules live below in the services.
package httpapi

import (
	"log/slog"
	"net/http"

	"stampchat/auth"
	"stampchat/blob"
	"stampchat/search"
	"stampchat/services"
	"stampchat/ws"
)

type Server struct {
	auth      services.IAuthService
	directory services.IDirectoryService
	chat      services.IChatService
	blobs     blob.Resolver
	index     *search.Index
	tokens    *auth.TokenManager
	blobRoot  string
	log       *slog.Logger
}

func NewServer(
	authService services.IAuthService,
	directory services.IDirectoryService,
	chat services.IChatService,
	blobs blob.Resolver,
	index *search.Index,
	tokens *auth.TokenManager,
	blobRoot string,
	log *slog.Logger,
) *Server {
	return &Server{
		auth:      authService,
		directory: directory,
		chat:      chat,
		blobs:     blobs,
		index:     index,
		tokens:    tokens,
		blobRoot:  blobRoot,
		log:       log,
	}
}

// Handler wires every route. Method-qualified patterns keep dispatch in the
// mux instead of per-handler switches.
func (s *Server) Handler(wsHandler *ws.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.Handle("POST /api/groups", s.withUser(s.handleCreateGroup))
	mux.Handle("GET /api/groups", s.withUser(s.handleListGroups))
	mux.Handle("POST /api/groups/join", s.withUser(s.handleJoinGroup))
	mux.Handle("GET /api/groups/resolve", s.withUser(s.handleResolveGroup))
	mux.Handle("POST /api/groups/{id}/leave", s.withUser(s.handleLeaveGroup))
	mux.Handle("PATCH /api/groups/{id}", s.withUser(s.handleRenameGroup))

	mux.Handle("GET /api/groups/{id}/messages", s.withUser(s.handleHistory))
	mux.Handle("POST /api/groups/{id}/messages", s.withUser(s.handleSendMessage))

	mux.Handle("POST /api/uploads", s.withUser(s.handleUpload))
	mux.Handle("GET /api/search", s.withUser(s.handleSearch))

	mux.HandleFunc("GET /ws", wsHandler.HandleWebSocket)
	mux.Handle("GET /blobs/",
		http.StripPrefix("/blobs/", http.FileServer(http.Dir(s.blobRoot))))

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.log.Debug("Handled request", "method", r.Method, "path", r.URL.Path)
	})
}
