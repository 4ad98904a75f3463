package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = maxBodyBytes
)

// streamRequest is the single message a client sends after connecting.
type streamRequest struct {
	Type string `json:"type"` // "research" or "image"

	Topic string `json:"topic,omitempty"`
	Fast  bool   `json:"fast_mode,omitempty"`

	models.ImageRequest
}

// streamEvent is sent for every finished step, then once with the result.
type streamEvent struct {
	Type     string             `json:"type"` // step, result, error
	Step     *models.StepResult `json:"step,omitempty"`
	Research *researchResponse  `json:"research,omitempty"`
	Image    *imageResponse     `json:"image,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

// streamConn serializes writes; gorilla connections allow one writer at a time.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(ev streamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.conn.WriteJSON(ev)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)
	sc := &streamConn{conn: conn}

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		sc.send(streamEvent{Type: "error", Detail: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A close from the client cancels the run.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	observe := func(step models.StepResult) {
		step.Image = nil
		if err := sc.send(streamEvent{Type: "step", Step: &step}); err != nil {
			cancel()
		}
	}

	var final streamEvent
	switch req.Type {
	case "research":
		res, err := s.api.RunResearchObserved(ctx, req.Topic, req.Fast, observe)
		if err != nil {
			final = streamEvent{Type: "error", Detail: err.Error()}
			break
		}
		resp := newResearchResponse(res)
		final = streamEvent{Type: "result", Research: &resp}
	case "image":
		res, err := s.api.RunImageGenerationObserved(ctx, req.ImageRequest, observe)
		if err != nil {
			final = streamEvent{Type: "error", Detail: err.Error()}
			break
		}
		resp := newImageResponse(res)
		final = streamEvent{Type: "result", Image: &resp}
	default:
		final = streamEvent{Type: "error", Detail: "unknown request type " + req.Type}
	}

	if err := sc.send(final); err != nil {
		s.logger.Debugf("stream: client went away before the result: %v", err)
		return
	}
	sc.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
	sc.mu.Unlock()
}
