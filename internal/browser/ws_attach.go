package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSSession is a minimal CDP client that opens a flattened page session
// over a raw WebSocket connection, without chromedp's allocator and its
// SetAutoAttach/SetDiscoverTargets session bootstrap. Grounded on
// cdpcontrol.rawCDP, narrowed to target discovery and the initial WS
// dial; callers that need the full event/command surface a Watcher runs
// on should attach through Attach/chromedp instead.
type WSSession struct {
	conn      net.Conn
	sessionID string
	seq       atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan json.RawMessage

	eventMu       sync.RWMutex
	eventHandlers []func(method string, params json.RawMessage)
}

// DialPage resolves address:port's browser WebSocket endpoint, dials it,
// and attaches a flattened session to targetID.
func DialPage(ctx context.Context, address string, port int, targetID string) (*WSSession, error) {
	if !isLikelyPageTargetID(targetID) {
		return nil, fmt.Errorf("ws_attach: empty target id")
	}

	wsURL, err := WebSocketDebuggerURL(ctx, address, port)
	if err != nil {
		return nil, fmt.Errorf("ws_attach: resolve debugger url: %w", err)
	}

	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("ws_attach: dial: %w", err)
	}

	s := &WSSession{conn: conn, pending: make(map[int64]chan json.RawMessage)}
	go s.readLoop()

	sessionID, err := s.attachToTarget(ctx, targetID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ws_attach: attach to target %s: %w", targetID, err)
	}
	s.sessionID = sessionID
	return s, nil
}

// Close closes the underlying WebSocket connection.
func (s *WSSession) Close() error {
	return s.conn.Close()
}

// OnEvent registers a handler invoked for every CDP event the browser
// pushes on this session (requestWillBeSent, requestPaused, and so on, as
// raw JSON params the caller decodes itself).
func (s *WSSession) OnEvent(fn func(method string, params json.RawMessage)) {
	s.eventMu.Lock()
	s.eventHandlers = append(s.eventHandlers, fn)
	s.eventMu.Unlock()
}

// Send issues a flat-session CDP command and returns its decoded result.
func (s *WSSession) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.seq.Add(1)
	req := struct {
		ID        int64  `json:"id"`
		Method    string `json:"method"`
		SessionID string `json:"sessionId,omitempty"`
		Params    any    `json:"params,omitempty"`
	}{ID: id, Method: method, SessionID: s.sessionID, Params: params}

	raw, err := s.sendRaw(ctx, id, req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw, nil
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("ws_attach: %s: %s", method, envelope.Error.Message)
	}
	return envelope.Result, nil
}

func (s *WSSession) attachToTarget(ctx context.Context, targetID string) (string, error) {
	id := s.seq.Add(1)
	req := struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params"`
	}{
		ID:     id,
		Method: "Target.attachToTarget",
		Params: struct {
			TargetID string `json:"targetId"`
			Flatten  bool   `json:"flatten"`
		}{TargetID: targetID, Flatten: true},
	}

	raw, err := s.sendRaw(ctx, id, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Result struct {
			SessionID string `json:"sessionId"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("ws_attach: unmarshal attach: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("ws_attach: attach: %s", resp.Error.Message)
	}
	return resp.Result.SessionID, nil
}

func (s *WSSession) sendRaw(ctx context.Context, id int64, envelope any) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	data, err := json.Marshal(envelope)
	if err != nil {
		s.deletePending(id)
		return nil, fmt.Errorf("ws_attach: marshal: %w", err)
	}

	if err := wsutil.WriteClientText(s.conn, data); err != nil {
		s.deletePending(id)
		return nil, fmt.Errorf("ws_attach: send: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("ws_attach: connection closed")
		}
		return resp, nil
	case <-ctx.Done():
		s.deletePending(id)
		return nil, ctx.Err()
	}
}

func (s *WSSession) deletePending(id int64) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *WSSession) readLoop() {
	for {
		data, err := wsutil.ReadServerText(s.conn)
		if err != nil {
			slog.Debug("ws_attach read loop exit", "error", err)
			s.closeAllPending()
			return
		}

		var msg struct {
			ID        int64           `json:"id"`
			Method    string          `json:"method"`
			SessionID string          `json:"sessionId"`
			Params    json.RawMessage `json:"params"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}

		if msg.ID > 0 {
			s.pendingMu.Lock()
			ch, ok := s.pending[msg.ID]
			if ok {
				delete(s.pending, msg.ID)
			}
			s.pendingMu.Unlock()
			if ok {
				ch <- json.RawMessage(data)
			}
			continue
		}

		if msg.Method != "" && (s.sessionID == "" || msg.SessionID == s.sessionID) {
			s.dispatchEvent(msg.Method, msg.Params)
		}
	}
}

func (s *WSSession) dispatchEvent(method string, params json.RawMessage) {
	s.eventMu.RLock()
	handlers := append([]func(string, json.RawMessage){}, s.eventHandlers...)
	s.eventMu.RUnlock()
	for _, h := range handlers {
		h(method, params)
	}
}

func (s *WSSession) closeAllPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// isLikelyPageTargetID is a light sanity check used before dialing a raw
// session: it only rejects an empty or blank id and does not check that
// the id names a page target.
func isLikelyPageTargetID(id string) bool {
	return len(strings.TrimSpace(id)) > 0
}
