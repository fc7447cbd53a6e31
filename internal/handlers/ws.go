package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lucas6028/silver-server/internal/mq"
	"github.com/lucas6028/silver-server/internal/sync"
	"github.com/lucas6028/silver-server/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
)

// WSHandler upgrades authenticated clients onto the live-sync stream: one
// session loop per connection, commands in, state snapshots out.
type WSHandler struct {
	svc      sync.Services
	bus      *mq.MQ
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// WSRouter registers the sync endpoint on the given router.
func WSRouter(
	r chi.Router,
	svc sync.Services,
	bus *mq.MQ,
	log *zap.SugaredLogger,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := &WSHandler{
		svc: svc,
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if authMiddleware != nil {
		r.With(promoteQueryToken, authMiddleware).Get("/", handler.Serve)
	} else {
		r.Get("/", handler.Serve)
	}
}

// promoteQueryToken lifts a token query parameter into the Authorization
// header. Browser websocket dials cannot set request headers.
func promoteQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.svc.Profiles.Get(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	identity := types.Identity{
		UID:         profile.UID,
		Provider:    profile.Provider,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AvatarURL:   profile.AvatarURL,
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "uid", uid, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := sync.NewSession(identity, h.svc, h.bus, h.log)
	go session.Run(ctx)
	go h.writeLoop(conn, session.Events(), cancel)

	h.readLoop(ctx, conn, session.Commands())
	cancel()
	_ = conn.Close()
}

// readLoop feeds decoded client commands into the session until the
// connection drops.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, commands chan<- sync.Command) {
	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd sync.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop is the connection's single writer: session events and pings.
func (h *WSHandler) writeLoop(conn *websocket.Conn, events <-chan sync.Event, cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
