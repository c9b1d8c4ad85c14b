package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
	"inforojo/internal/hub"
	"inforojo/internal/store"
)

type WSHandler struct {
	hub            *hub.Hub
	store          *store.Store
	originPatterns []string
	zoomLevel      int
	logger         *slog.Logger
}

func NewWSHandler(h *hub.Hub, s *store.Store, originPatterns []string, zoomLevel int, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, store: s, originPatterns: originPatterns, zoomLevel: zoomLevel, logger: logger.With("handler", "ws")}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload names tiles directly or a bbox expanded at the tracker
// zoom level.
type SubscribePayload struct {
	TileIDs []string            `json:"tileIds"`
	BBox    *domain.BoundingBox `json:"bbox,omitempty"`
}

type UnsubscribePayload struct {
	TileIDs []string `json:"tileIds"`
}

type SnapshotMessage struct {
	Type    string          `json:"type"`
	Payload SnapshotPayload `json:"payload"`
}

type SnapshotPayload struct {
	Corredores []*domain.Corredor `json:"corredores"`
	TileIDs    []string           `json:"tileIds"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 256)

	h.hub.Register(client)
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			tiles := payload.TileIDs
			if payload.BBox != nil {
				if err := checkBBox(*payload.BBox); err != nil {
					h.send(client, ErrorMessage{Type: "error", Error: "invalid bbox: " + err.Error()})
					continue
				}
				bboxTiles := geo.TilesInBBox(*payload.BBox, h.zoomLevel)
				if bboxTiles == nil {
					h.send(client, ErrorMessage{Type: "error", Error: "bbox too large"})
					continue
				}
				tiles = append(tiles, bboxTiles...)
			}
			if len(tiles) > geo.MaxTilesPerRequest {
				h.send(client, ErrorMessage{Type: "error", Error: "too many tiles"})
				continue
			}
			if len(tiles) > 0 {
				h.hub.Subscribe(client, tiles)
				h.sendSnapshot(client, tiles)
			}

		case "unsubscribe":
			var payload UnsubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.TileIDs) > 0 {
				h.hub.Unsubscribe(client, payload.TileIDs)
			}

		case "ping":
			h.send(client, PongMessage{Type: "pong"})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendSnapshot(client *hub.Client, tileIDs []string) {
	corredores := h.store.SnapshotForTiles(tileIDs)
	if corredores == nil {
		corredores = []*domain.Corredor{}
	}

	h.send(client, SnapshotMessage{
		Type: "snapshot",
		Payload: SnapshotPayload{
			Corredores: corredores,
			TileIDs:    tileIDs,
		},
	})
}

func (h *WSHandler) send(client *hub.Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Debug("client send buffer full", "client_id", client.ID)
	}
}
