package http

import (
	"log/slog"
	"net/http"
	"time"

	"finscope/internal/watch"

	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Auth is the bearer token, not a cookie, so cross-origin frames carry
	// no ambient credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveEvent is one full snapshot pushed over the websocket. Every event
// replaces the client's previous state for its topic; clients keep the
// highest seq per topic and drop anything older or from a stale epoch.
type liveEvent struct {
	Topic   string           `json:"topic"`
	Seq     uint64           `json:"seq"`
	Epoch   uint64           `json:"epoch"`
	Records []transactionDTO `json:"records,omitempty"`
	Profile *profileDTO      `json:"profile,omitempty"`
}

// handleLive upgrades to a websocket and streams full snapshots of the
// caller's transactions and profile until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()

	txnSub, err := s.hub.Subscribe(ctx, watch.TransactionsTopic(identity.ID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	profSub, err := s.hub.Subscribe(ctx, watch.ProfileTopic(identity.ID))
	if err != nil {
		txnSub.Unsubscribe()
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		txnSub.Unsubscribe()
		profSub.Unsubscribe()
		slog.WarnContext(ctx, "Websocket upgrade failed", "error", err)
		return
	}

	defer func() {
		txnSub.Unsubscribe()
		profSub.Unsubscribe()
		conn.Close()
	}()

	slog.InfoContext(ctx, "Live stream opened", "user_id", identity.ID)

	// Read pump: the client sends nothing meaningful, but reading is how we
	// learn about close frames and dead peers.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(livePingInterval)
	defer pings.Stop()

	for {
		select {
		case snap, ok := <-txnSub.Snapshots():
			if !ok {
				return
			}
			if !s.writeLiveEvent(conn, snap, txnSub.Epoch) {
				return
			}
		case snap, ok := <-profSub.Snapshots():
			if !ok {
				return
			}
			if !s.writeLiveEvent(conn, snap, profSub.Epoch) {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			slog.InfoContext(ctx, "Live stream closed by client", "user_id", identity.ID)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeLiveEvent(conn *websocket.Conn, snap watch.Snapshot, epoch uint64) bool {
	event := liveEvent{
		Topic: snap.Topic,
		Seq:   snap.Seq,
		Epoch: epoch,
	}
	if watch.IsTransactionsTopic(snap.Topic) {
		event.Records = toTransactionDTOs(snap.Records)
	}
	if snap.Profile != nil {
		profile := toProfileDTO(*snap.Profile)
		event.Profile = &profile
	}

	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := conn.WriteJSON(event); err != nil {
		slog.Warn("Live stream write failed", "topic", snap.Topic, "error", err)
		return false
	}
	return true
}
