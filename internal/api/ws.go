package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// openingFrame is the single client->server frame spec.md §6 defines.
type openingFrame struct {
	APIKey string            `json:"apiKey"`
	Nodes  []graph.VertexDoc `json:"nodes"`
	Edges  []graph.EdgeDoc   `json:"edges"`
}

// serveWS upgrades the connection, reads the one opening frame, starts a
// session for the submitted graph, and relays its event stream back as
// server->client frames until execution_complete/execution_error or the
// client disconnects.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var opening openingFrame
	if err := conn.ReadJSON(&opening); err != nil {
		writeError(conn, "invalid-graph", "malformed opening frame: "+err.Error())
		return
	}

	doc := &graph.Document{Nodes: opening.Nodes, Edges: opening.Edges}
	sess, err := s.sessions.Create(doc, opening.APIKey)
	if err != nil {
		writeError(conn, "invalid-graph", err.Error())
		return
	}
	defer s.sessions.Remove(sess.ID)

	ctx := r.Context()
	sess.Start(ctx)

	disconnect := make(chan struct{})
	go watchForClientClose(conn, disconnect, sess.Cancel)

	for ev := range sess.Events() {
		if err := conn.WriteJSON(toFrame(ev)); err != nil {
			sess.Cancel()
			break
		}
	}
	close(disconnect)
}

// watchForClientClose reads (and discards) any further client frames; a
// read error, including the client closing the connection, cancels the
// session (spec.md §5 cancellation triggers).
func watchForClientClose(conn *websocket.Conn, stop <-chan struct{}, cancel func()) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			return
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

func writeError(conn *websocket.Conn, kind, message string) {
	_ = conn.WriteJSON(map[string]any{
		"type":  "execution_error",
		"error": message,
		"kind":  kind,
	})
}

// toFrame converts a bus.Event into the server->client wire frame shape
// spec.md §6 defines, extracting the field each event type carries from
// the event's untyped payload map.
func toFrame(ev bus.Event) map[string]any {
	frame := map[string]any{"type": string(ev.Type)}
	if ev.VertexID != "" {
		frame["node_id"] = ev.VertexID
	}
	switch ev.Type {
	case bus.EventTokenStream:
		frame["token"] = ev.Payload["delta"]
	case bus.EventNodeUsage:
		frame["usage"] = map[string]any{
			"input_tokens":  ev.Payload["prompt_tokens"],
			"output_tokens": ev.Payload["completion_tokens"],
			"total_tokens":  ev.Payload["total_tokens"],
		}
	case bus.EventNodeFinish:
		frame["result"] = ev.Payload["result"]
	case bus.EventNodeFailed:
		frame["error"] = ev.Payload["error"]
		frame["kind"] = ev.Payload["kind"]
	case bus.EventExecutionError:
		if ev.Payload != nil {
			frame["error"] = ev.Payload["error"]
		}
	}
	return frame
}
