// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// bridgeServer emulates a serial-over-WebSocket bridge. It sends the given
// messages, then echoes back whatever it receives in received.
func bridgeServer(t *testing.T, user, password string, send []wsMessage, received chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, m := range send {
			if err := conn.WriteMessage(m.kind, m.data); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
}

type wsMessage struct {
	kind int
	data []byte
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection_ReadsBinaryFrames(t *testing.T) {
	received := make(chan []byte, 4)
	srv := bridgeServer(t, "", "", []wsMessage{
		{websocket.TextMessage, []byte("ignored")},
		{websocket.BinaryMessage, frame.MustEncode("001")},
	}, received)
	defer srv.Close()

	conn, err := OpenWebSocketConnection(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 2)
	var got []byte
	for len(got) < 5 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, frame.MustEncode("001"), got)

	_, err = conn.Write(frame.CommandUnlock.Bytes())
	require.NoError(t, err)
	select {
	case data := <-received:
		assert.Equal(t, []byte("1"), data)
	case <-time.After(time.Second):
		t.Fatal("command not received by bridge")
	}
}

func TestWebSocketConnection_BasicAuth(t *testing.T) {
	srv := bridgeServer(t, "gateway", "s3cret", nil, make(chan []byte, 1))
	defer srv.Close()

	_, err := OpenWebSocketConnection(context.Background(), wsURL(srv), "gateway", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	conn, err := OpenWebSocketConnection(context.Background(), wsURL(srv), "gateway", "s3cret", false)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketConnection_ClosedAfterFailure(t *testing.T) {
	srv := bridgeServer(t, "", "", nil, make(chan []byte, 1))

	conn, err := OpenWebSocketConnection(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	conn.Close()
	srv.Close()

	buf := make([]byte, 8)
	_, err = conn.Read(buf)
	require.Error(t, err)
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestOpenWebSocketConnection_RejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection(context.Background(), "http://localhost/ws", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestNewDialer_NoEndpoint(t *testing.T) {
	_, _, err := NewDialer(Endpoint{})(context.Background())
	require.Error(t, err)
}
