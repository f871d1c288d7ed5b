package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/mapview"
	"github.com/s3kfm/lezhure-maps/presenter"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStream(t *testing.T) {
	router := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()
	info := createSession(t, router)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/sessions/"+info.ID+"/stream"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "ops", frame.Type)
	require.NotEmpty(t, frame.Ops)
	assert.Equal(t, presenter.OpMount, frame.Ops[0].Kind)

	deep := mapview.View{Center: cluster.LatLng{Lat: 34.05, Lng: -118.24}, Zoom: 22, Width: 800, Height: 600}
	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "settle", View: &deep}))

	// Ops frames from the ticker may arrive before the settle reply.
	var settled *StreamFrame
	for settled == nil {
		var f StreamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "settle" {
			settled = &f
		}
	}
	require.NotNil(t, settled.Settle)
	assert.True(t, settled.Settle.Applied)
	assert.Len(t, settled.Settle.Representatives, 3)

	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "zoom"}))
	for {
		var f StreamFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "error" {
			assert.Contains(t, f.Error, "unknown message type")
			break
		}
	}
}

func TestStreamUnknownSession(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/sessions/nope/stream"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
