package ws

import (
	"log"
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	auth     *utils.Authenticator
	upgrader websocket.Upgrader
}

// NewHandler accepts connections from allowedOrigins; an empty list allows any.
func NewHandler(hub *Hub, auth *utils.Authenticator, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")
}

// HandleWebSocket authenticates with ?token= since browsers cannot set
// headers on the upgrade request.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.auth.Error(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	log.Printf("WebSocket connection established for user %d", actor.ID)

	client := &ClientConnection{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: actor.ID,
	}
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
