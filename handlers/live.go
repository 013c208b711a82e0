// handlers/live.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dalemusser/customform/forms"
	"github.com/dalemusser/customform/middleware"
	"go.uber.org/zap"
)

const (
	liveReadLimit    = 4 << 10
	liveIdleTimeout  = 5 * time.Minute
	liveWriteTimeout = 10 * time.Second
)

// liveRequest is one keystroke check. Seq is echoed back untouched so a
// client can match answers to requests.
type liveRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Seq   int64  `json:"seq,omitempty"`
}

type liveResponse struct {
	forms.LiveResult
	Seq int64 `json:"seq,omitempty"`
}

type liveError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Seq     int64  `json:"seq,omitempty"`
}

// live upgrades to a WebSocket and answers each field check in the order
// it was received.
func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apiForm(w, r)
	if !ok {
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.wsOrigins})
	if err != nil {
		h.logger.Debug("live upgrade refused", zap.String("form", id), zap.Error(err))
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(liveReadLimit)

	if err := h.serveLive(r.Context(), c, id, middleware.ClientIP(r)); err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		default:
			if !errors.Is(err, context.Canceled) {
				h.logger.Debug("live socket ended", zap.String("form", id), zap.Error(err))
			}
		}
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}

// allow applies the per-client limit to one socket message.
func (h *Handler) allow(client string) bool {
	if h.limiter == nil {
		return true
	}
	ok, _ := h.limiter.Allow(client)
	return ok
}

func (h *Handler) serveLive(ctx context.Context, c *websocket.Conn, formID, client string) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, liveIdleTimeout)
		typ, data, err := c.Read(readCtx)
		cancel()
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			c.Close(websocket.StatusUnsupportedData, "text messages only")
			return nil
		}

		var req liveRequest
		var reply any
		if err := json.Unmarshal(data, &req); err != nil {
			reply = liveError{Error: "bad_request", Message: "malformed JSON"}
		} else if !h.allow(client) {
			reply = liveError{Error: "rate_limited", Message: "too many requests, slow down", Seq: req.Seq}
		} else if res, err := h.forms.CheckField(formID, req.Field, req.Value); err != nil {
			reply = liveError{Error: "unknown_field", Message: "field " + req.Field + " is not validated", Seq: req.Seq}
		} else {
			reply = liveResponse{LiveResult: res, Seq: req.Seq}
		}

		writeCtx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
		err = wsjson.Write(writeCtx, c, reply)
		cancel()
		if err != nil {
			return err
		}
	}
}
