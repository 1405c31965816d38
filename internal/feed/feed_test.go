package feed

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFrameRejectsBadLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	_, err := ReadFrame(&buf)
	assert.ErrorContains(t, err, "invalid frame length")

	assert.Error(t, WriteFrame(&buf, nil))

	buf.Reset()
	require.NoError(t, WriteFrame(&buf, []byte("{}")))
	assert.Equal(t, []byte{4, 0, '{', '}'}, buf.Bytes())
}

func TestServerDeliversBatchesAndAcksErrors(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", 4, 0, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	go srv.AcceptLoop()
	t.Cleanup(srv.Shutdown)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var sess *Session
	select {
	case sess = <-srv.NewSessions():
	case <-time.After(2 * time.Second):
		t.Fatal("no session")
	}
	t.Cleanup(sess.Close)

	require.NoError(t, WriteFrame(conn, []byte(`{"op":"nope"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := ReadFrame(conn)
	require.NoError(t, err)
	var ack Ack
	require.NoError(t, json.Unmarshal(reply, &ack))
	assert.Contains(t, ack.Error, "unknown op")

	require.NoError(t, WriteFrame(conn, []byte(`{"op":"remove","ids":["a","b"]}`)))
	select {
	case b := <-sess.InQueue:
		assert.Equal(t, watch.OpRemove, b.Op)
		assert.Equal(t, []string{"a", "b"}, b.IDs)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch")
	}

	sess.Reply(Ack{Applied: 2})
	reply, err = ReadFrame(conn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":2}`, string(reply))

	// a batch whose ids were all unknown still reads as a success
	sess.Reply(Ack{})
	reply, err = ReadFrame(conn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":0}`, string(reply))
}
