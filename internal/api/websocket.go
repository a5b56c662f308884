package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"
)

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r.Context(), nil
}

// StreamEvents sends the state of every target, then each update, as one
// JSON text message per state. The optional "name" query parameter limits
// the stream to one target.
func StreamEvents(serverCtx context.Context, s *Service, w http.ResponseWriter, r *http.Request) {
	c, ctx, err := accept(w, r)
	if err != nil {
		log.WithError(err).Error("Failed to accept websocket client")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	name := r.URL.Query().Get("name")
	logger := log.WithFields(log.Fields{
		"remote": r.RemoteAddr,
		"name":   name,
	})
	logger.Debug("Event stream opened")
	defer logger.Debug("Event stream closed")

	states, unsub := s.targets.Subscribe()
	defer unsub()

	// The client never sends anything; reading surfaces its close.
	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-serverCtx.Done():
			c.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case state, ok := <-states:
			if !ok {
				c.Close(websocket.StatusGoingAway, "targets closed")
				return
			}
			if name != "" && state.Name != name {
				continue
			}
			b, err := json.Marshal(state)
			if err != nil {
				logger.WithError(err).Warn("Failed to encode target state")
				continue
			}
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				logger.WithError(err).Debug("Failed to write to websocket client")
				return
			}
		}
	}
}
