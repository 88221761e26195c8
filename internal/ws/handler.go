package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/magnifycash/backend/internal/aggregator"
)

// SnapshotPeeker returns the cached snapshot for a wallet without fetching.
type SnapshotPeeker interface {
	Peek(ctx context.Context, wallet string) aggregator.View
}

type Handler struct {
	hub       *Hub
	snapshots SnapshotPeeker
	log       zerolog.Logger
}

func NewHandler(hub *Hub, snapshots SnapshotPeeker, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, snapshots: snapshots, log: log.With().Str("component", "ws").Logger()}
}

type clientMessage struct {
	Action string `json:"action"`
}

// HandleWebSocket subscribes the connection to the session wallet's channel.
// It expects the auth middleware to have set "wallet".
func (h *Handler) HandleWebSocket(c *gin.Context) {
	wallet := c.GetString("wallet")
	if wallet == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn, wallet)
		h.hub.Subscribe(WalletChannel(wallet), client)
		h.greet(ctx, client)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) greet(ctx context.Context, client *Client) {
	if h.snapshots == nil {
		return
	}
	view := h.snapshots.Peek(ctx, client.wallet)
	if view.Data == nil {
		return
	}
	payload, err := json.Marshal(event{Event: EventContractDataUpdated, Data: view.Data})
	if err != nil {
		return
	}
	client.send(payload)
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
		_ = client.conn.Close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) == "ping" {
			client.send([]byte(`{"event":"pong"}`))
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			h.log.Debug().Err(err).Str("wallet", client.wallet).Msg("websocket write failed")
			return
		}
	}
}
