package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", zap.NewNop())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n },
		5*time.Second, 10*time.Millisecond)
}

func TestPhaseBroadcast(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	s.Phase("importing teams and speakers")

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePhase, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	var data PhaseData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "importing teams and speakers", data.Phase)
}

func TestEntityCreatedReachesAllClients(t *testing.T) {
	s := startServer(t)
	first := dial(t, s)
	second := dial(t, s)
	waitForClients(t, s, 2)

	s.EntityCreated("judge", "Minerva McGonagall", "http://x/adjudicators/3")

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageTypeEntityCreated, msg.Type)

		var data EntityCreatedData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "judge", data.Kind)
		assert.Equal(t, "Minerva McGonagall", data.Name)
	}
}

func TestRunFinishedCarriesError(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	s.RunFinished(errors.New("boom"))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeRunFinished, msg.Type)

	var data RunFinishedData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.False(t, data.Succeeded)
	assert.Equal(t, "boom", data.Error)
}

func TestHealthEndpoint(t *testing.T) {
	s := startServer(t)
	dial(t, s)
	waitForClients(t, s, 1)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["clients"])
}

func TestClientDisconnectIsDetected(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	waitForClients(t, s, 0)
}
