package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// mpvConn speaks the mpv JSON IPC protocol over a unix socket. One request
// is in flight at a time; the controller serializes access.
type mpvConn struct {
	conn   net.Conn
	reader *bufio.Reader
	nextID int64
}

func newMPVConn(conn net.Conn) *mpvConn {
	return &mpvConn{conn: conn, reader: bufio.NewReader(conn)}
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

// command sends one command and waits for its reply, skipping the event
// notifications mpv interleaves on the same socket.
func (m *mpvConn) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	m.nextID++
	id := m.nextID

	payload, err := json.Marshal(map[string]any{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	payload = append(payload, '\n')

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := m.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set mpv deadline: %w", err)
	}

	if _, err := m.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	for {
		line, err := m.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("read mpv response: %w", err)
		}
		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Event != "" || resp.RequestID != id {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv rejected command: %s", resp.Error)
		}
		return resp.Data, nil
	}
}

func (m *mpvConn) loadFile(ctx context.Context, path string) error {
	_, err := m.command(ctx, "loadfile", path, "replace")
	return err
}

func (m *mpvConn) setPause(ctx context.Context, paused bool) error {
	_, err := m.command(ctx, "set_property", "pause", paused)
	return err
}

func (m *mpvConn) quit(ctx context.Context) error {
	_, err := m.command(ctx, "quit")
	return err
}

// ping verifies the socket still answers.
func (m *mpvConn) ping(ctx context.Context) error {
	_, err := m.command(ctx, "get_property", "pid")
	return err
}

func (m *mpvConn) close() error {
	if m == nil || m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

var errNotAttached = errors.New("player: not attached")
