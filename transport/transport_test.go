package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestProbeLeavesPayloadUnread(t *testing.T) {
	payload := []byte(`{"ssid":"Home","password":"secret123"}`)

	var buf bytes.Buffer
	err := ws.WriteFrame(&buf, ws.MaskFrame(ws.NewTextFrame(payload)))
	if err != nil {
		t.Fatalf("could not write frame: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())

	h, err := probe(r)
	if err != nil {
		t.Fatalf("could not probe frame: %v", err)
	}

	if h.Length != int64(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), h.Length)
	}

	if r.Len() != len(payload) {
		t.Fatalf("expected %d unread bytes after probing, got %d", len(payload), r.Len())
	}

	got, err := readPayload(r, h)
	if err != nil {
		t.Fatalf("could not read payload: %v", err)
	}

	if len(got) != len(payload) || !bytes.Equal(got, payload) {
		t.Fatalf("expected payload %q, got %q", payload, got)
	}

	if r.Len() != 0 {
		t.Fatalf("expected the payload to be consumed exactly, %d bytes left", r.Len())
	}
}

func TestReadPayloadShort(t *testing.T) {
	h := ws.Header{Fin: true, OpCode: ws.OpText, Length: 10}

	_, err := readPayload(strings.NewReader("short"), h)
	if err == nil {
		t.Fatalf("expected an error for a truncated payload")
	}
}

// stutteringReader fails once in the middle of a stream and then goes on.
type stutteringReader struct {
	steps []readStep
}

type readStep struct {
	data []byte
	err  error
}

func (r *stutteringReader) Read(p []byte) (int, error) {
	for len(r.steps) > 0 {
		step := &r.steps[0]

		if step.err != nil {
			err := step.err
			r.steps = r.steps[1:]
			return 0, err
		}

		if len(step.data) == 0 {
			r.steps = r.steps[1:]
			continue
		}

		n := copy(p, step.data)
		step.data = step.data[n:]

		return n, nil
	}

	return 0, io.EOF
}

func TestServeSurvivesPayloadReadError(t *testing.T) {
	var broken bytes.Buffer
	err := ws.WriteHeader(&broken, ws.Header{
		Fin:    true,
		OpCode: ws.OpText,
		Masked: true,
		Mask:   [4]byte{1, 2, 3, 4},
		Length: 5,
	})
	if err != nil {
		t.Fatalf("could not write header: %v", err)
	}

	var intact bytes.Buffer
	err = ws.WriteFrame(&intact, ws.MaskFrame(ws.NewTextFrame([]byte("hello"))))
	if err != nil {
		t.Fatalf("could not write frame: %v", err)
	}

	r := &stutteringReader{steps: []readStep{
		{data: broken.Bytes()},
		{err: errors.New("connection reset")},
		{data: intact.Bytes()},
	}}

	server, client := net.Pipe()
	defer client.Close()

	p := &peer{conn: server}

	var received []string

	c := NewChannel(&Config{})
	c.peer.Store(p)

	c.serve(p, r, MessageSinkFunc(func(data []byte) {
		received = append(received, string(data))
	}))

	if len(received) != 1 || received[0] != "hello" {
		t.Fatalf("expected the message after the failed read, got %q", received)
	}

	if c.Connected() {
		t.Fatalf("expected the peer to be released at end of stream")
	}
}

func TestPushWithoutPeer(t *testing.T) {
	c := NewChannel(&Config{Listen: "127.0.0.1:0"})

	if err := c.Push([]byte("hello")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	startChannel(t, c, nil)

	if err := c.Push([]byte("hello")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected without handshake, got %v", err)
	}
}

func TestServeDocument(t *testing.T) {
	c := NewChannel(&Config{Listen: "127.0.0.1:0"})
	startChannel(t, c, nil)

	res, err := http.Get("http://" + c.Addr().String() + "/")
	if err != nil {
		t.Fatalf("could not get document: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("could not read document: %v", err)
	}

	if string(body) != "<html>provd</html>" {
		t.Fatalf("unexpected document %q", body)
	}
}

func TestMessagesAndPush(t *testing.T) {
	logger, _ := test.NewNullLogger()
	received := make(chan string, 4)

	c := NewChannel(&Config{Listen: "127.0.0.1:0", Logger: logger})
	startChannel(t, c, MessageSinkFunc(func(data []byte) {
		received <- string(data)
	}))

	conn := dial(t, c)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("could not write binary message: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"scan":"start"}`)); err != nil {
		t.Fatalf("could not write text message: %v", err)
	}

	if got := receive(t, received); got != `{"scan":"start"}` {
		t.Fatalf("unexpected message %q", got)
	}

	waitConnected(t, c)

	if err := c.Push([]byte(`{"wifi_list":[]}`)); err != nil {
		t.Fatalf("could not push: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("could not read pushed message: %v", err)
	}

	if kind != websocket.TextMessage || string(data) != `{"wifi_list":[]}` {
		t.Fatalf("unexpected pushed message %v %q", kind, data)
	}
}

func TestOversizedMessageIsDropped(t *testing.T) {
	received := make(chan string, 4)

	c := NewChannel(&Config{Listen: "127.0.0.1:0", MaxMessageSize: 16})
	startChannel(t, c, MessageSinkFunc(func(data []byte) {
		received <- string(data)
	}))

	conn := dial(t, c)

	if err := conn.WriteMessage(websocket.TextMessage, bytes.Repeat([]byte("x"), 100)); err != nil {
		t.Fatalf("could not write oversized message: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("could not write message: %v", err)
	}

	if got := receive(t, received); got != "hello" {
		t.Fatalf("expected the oversized message to be dropped, got %q", got)
	}

	if !c.Connected() {
		t.Fatalf("expected the connection to survive")
	}
}

func TestPingIsAnswered(t *testing.T) {
	c := NewChannel(&Config{Listen: "127.0.0.1:0"})
	startChannel(t, c, nil)

	conn := dial(t, c)

	pongs := make(chan string, 1)
	conn.SetPongHandler(func(data string) error {
		pongs <- data
		return nil
	})

	if err := conn.WriteControl(websocket.PingMessage, []byte("beat"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("could not ping: %v", err)
	}

	// the pong handler runs inside a read
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, _ = conn.ReadMessage()
	}()

	select {
	case data := <-pongs:
		if data != "beat" {
			t.Fatalf("unexpected pong payload %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no pong received")
	}
}

func TestSecondHandshakeReplacesPeer(t *testing.T) {
	c := NewChannel(&Config{Listen: "127.0.0.1:0"})
	startChannel(t, c, nil)

	first := dial(t, c)
	waitConnected(t, c)

	second := dial(t, c)

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected the first peer to be closed")
	}

	waitConnected(t, c)

	if err := c.Push([]byte("hi")); err != nil {
		t.Fatalf("could not push: %v", err)
	}

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	if err != nil || string(data) != "hi" {
		t.Fatalf("expected the second peer to receive the push, got %q %v", data, err)
	}
}

func TestStopInvalidatesPeer(t *testing.T) {
	c := NewChannel(&Config{Listen: "127.0.0.1:0"})
	if err := c.Start([]byte("doc"), MessageSinkFunc(func([]byte) {})); err != nil {
		t.Fatalf("could not start channel: %v", err)
	}

	conn := dial(t, c)
	waitConnected(t, c)

	if err := c.Stop(); err != nil {
		t.Fatalf("could not stop channel: %v", err)
	}

	if err := c.Push([]byte("late")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected after stop, got %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the peer connection to be closed")
	}

	if err := c.Start([]byte("doc"), MessageSinkFunc(func([]byte) {})); err != nil {
		t.Fatalf("could not restart channel: %v", err)
	}

	_ = c.Stop()
}

func startChannel(t *testing.T, c *Channel, sink MessageSink) {
	t.Helper()

	if sink == nil {
		sink = MessageSinkFunc(func([]byte) {})
	}

	err := c.Start([]byte("<html>provd</html>"), sink)
	if err != nil {
		t.Fatalf("could not start channel: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Stop()
	})
}

func dial(t *testing.T, c *Channel) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+c.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("could not dial: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func waitConnected(t *testing.T, c *Channel) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Connected() {
		if time.Now().After(deadline) {
			t.Fatalf("peer never got tracked")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, messages <-chan string) string {
	t.Helper()

	select {
	case m := <-messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
		return ""
	}
}
