package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/genai"
	"chatrelay/internal/app/presence"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
)

// fakeRecord mirrors one persisted message record.
type fakeRecord struct {
	UserID   string
	Text     string
	Response *string
}

// fakeMessages is an in-memory MessageStore that enforces the write-once
// response rule the real repository enforces in SQL.
type fakeMessages struct {
	mu      sync.Mutex
	nextID  int
	records map[string]*fakeRecord
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{records: make(map[string]*fakeRecord)}
}

func (f *fakeMessages) CreateMessage(_ context.Context, userID, userMessage string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	f.records[id] = &fakeRecord{UserID: userID, Text: userMessage}
	return id, nil
}

func (f *fakeMessages) SetResponse(_ context.Context, id, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[id]
	if !ok || rec.Response != nil {
		return store.ErrResponseAlreadySet
	}
	rec.Response = &response
	return nil
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeMessages) single(t *testing.T) fakeRecord {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(f.records))
	}
	for _, rec := range f.records {
		return *rec
	}
	return fakeRecord{}
}

// fakeGenerator resolves every submission with a canned result.
type fakeGenerator struct {
	text  string
	err   error
	delay time.Duration
}

func (g *fakeGenerator) Submit(_ context.Context, _ string) <-chan genai.Result {
	ch := make(chan genai.Result, 1)
	go func() {
		if g.delay > 0 {
			time.Sleep(g.delay)
		}
		ch <- genai.Result{Text: g.text, Err: g.err}
	}()
	return ch
}

// socketPair upgrades one WebSocket connection through a throwaway test server
// and returns both ends.
func socketPair(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server side of socket pair")
	}
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

type testEnv struct {
	hub      *Hub
	presence *presence.Memory
	messages *fakeMessages
	services Services
	settings Settings
}

func newTestEnv(t *testing.T, gen GenerationSubmitter) *testEnv {
	t.Helper()

	hub := NewHub()
	t.Cleanup(hub.Shutdown)

	mem := presence.NewMemory()
	messages := newFakeMessages()

	return &testEnv{
		hub:      hub,
		presence: mem,
		messages: messages,
		services: Services{Presence: mem, Messages: messages, Generation: gen},
		settings: Settings{HighWaterMark: 4, LowWaterMark: 5},
	}
}

// startClient wires a Client around a fresh socket pair and begins its pumps.
func (env *testEnv) startClient(t *testing.T, id, nickname string) (*Client, *websocket.Conn) {
	t.Helper()

	serverConn, clientConn := socketPair(t)

	client := NewClient(env.hub, serverConn, user.Identity{ID: id, Nickname: nickname}, env.services, env.settings)
	go client.WritePump()
	client.Admit(context.Background())
	go client.ReadPump()

	return client, clientConn
}

// readFrame reads the next outbound frame from the client side of the socket.
func readFrame(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	return ev
}

// expectNoFrame asserts no frame arrives within a short window.
func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame received: %s", data)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected read timeout, got: %v", err)
	}
}

func sendMessage(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}
}

// TestAdmissionAcknowledgment verifies the system frame sent on admission and
// the presence registration behind it.
func TestAdmissionAcknowledgment(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	_, conn := env.startClient(t, "alice", "Alice")

	ev := readFrame(t, conn)
	if ev.Type != EventSystem {
		t.Fatalf("first frame type = %q, want %q", ev.Type, EventSystem)
	}
	if ev.Message != "Connected as Alice." {
		t.Fatalf("ack message = %q", ev.Message)
	}

	count, err := env.presence.Count(context.Background())
	if err != nil {
		t.Fatalf("presence count: %v", err)
	}
	if count != 1 {
		t.Fatalf("presence count = %d, want 1", count)
	}
}

// TestPresenceCollapsesConnections verifies that two connections for the same
// identity count once and that closing one keeps the identity present.
func TestPresenceCollapsesConnections(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	first, connA := env.startClient(t, "alice", "Alice")
	_, connB := env.startClient(t, "alice", "Alice")
	readFrame(t, connA)
	readFrame(t, connB)

	count, _ := env.presence.Count(context.Background())
	if count != 1 {
		t.Fatalf("presence count = %d, want 1", count)
	}

	first.Cleanup()

	// The other connection is still open, so the identity stays present.
	count, _ = env.presence.Count(context.Background())
	if count != 1 {
		t.Fatalf("presence count = %d after one disconnect, want 1", count)
	}
}

// TestOverloadNoticeAtHighWater verifies that the admission reaching the
// high-water mark broadcasts exactly one overload notice, seen by everyone
// including the newly admitted connection.
func TestOverloadNoticeAtHighWater(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	conns := make([]*websocket.Conn, 0, 4)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, conn := env.startClient(t, id, id)
		readFrame(t, conn) // system ack
		conns = append(conns, conn)
	}

	_, fourth := env.startClient(t, "u4", "u4")
	if ev := readFrame(t, fourth); ev.Type != EventSystem {
		t.Fatalf("expected system ack first, got %+v", ev)
	}
	conns = append(conns, fourth)

	for i, conn := range conns {
		ev := readFrame(t, conn)
		if ev.Type != EventBroadcast {
			t.Fatalf("conn %d: frame type = %q, want %q", i, ev.Type, EventBroadcast)
		}
		if ev.Message != OverloadNotice {
			t.Fatalf("conn %d: message = %q", i, ev.Message)
		}
		expectNoFrame(t, conn)
	}
}

// TestRecoveryNoticeOnDisconnect verifies the recovery broadcast when a
// disconnect leaves presence at or below the low-water mark.
func TestRecoveryNoticeOnDisconnect(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	leaver, leaverConn := env.startClient(t, "leaver", "Leaver")
	readFrame(t, leaverConn)

	_, stayerConn := env.startClient(t, "stayer", "Stayer")
	readFrame(t, stayerConn)

	leaver.Cleanup()

	ev := readFrame(t, stayerConn)
	if ev.Type != EventBroadcast || ev.Message != RecoveryNotice {
		t.Fatalf("got %+v, want recovery broadcast", ev)
	}
}

// TestCleanupIdempotent verifies that running disconnect cleanup twice neither
// panics nor publishes a second recovery notice.
func TestCleanupIdempotent(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	leaver, leaverConn := env.startClient(t, "leaver", "Leaver")
	readFrame(t, leaverConn)

	_, stayerConn := env.startClient(t, "stayer", "Stayer")
	readFrame(t, stayerConn)

	leaver.Cleanup()
	leaver.Cleanup()

	ev := readFrame(t, stayerConn)
	if ev.Type != EventBroadcast || ev.Message != RecoveryNotice {
		t.Fatalf("got %+v, want recovery broadcast", ev)
	}
	expectNoFrame(t, stayerConn)

	count, _ := env.presence.Count(context.Background())
	if count != 1 {
		t.Fatalf("presence count = %d, want 1", count)
	}
}

// TestMessageRoundTrip verifies the full sequence for one message: immediate
// user echo, exactly one bot frame, and one record with the response filled.
func TestMessageRoundTrip(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "Hi there!"})

	_, conn := env.startClient(t, "alice", "Alice")
	readFrame(t, conn)

	sendMessage(t, conn, `{"message": "hello"}`)

	echo := readFrame(t, conn)
	if echo.Type != EventUser || echo.Message != "hello" {
		t.Fatalf("echo frame = %+v", echo)
	}

	bot := readFrame(t, conn)
	if bot.Type != EventBot || bot.Message != "Hi there!" {
		t.Fatalf("bot frame = %+v", bot)
	}
	expectNoFrame(t, conn)

	rec := env.messages.single(t)
	if rec.UserID != "alice" || rec.Text != "hello" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Response == nil || *rec.Response != "Hi there!" {
		t.Fatalf("record response = %v, want 'Hi there!'", rec.Response)
	}
}

// TestMessageTrimming verifies surrounding whitespace is stripped before
// persistence and echo.
func TestMessageTrimming(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	_, conn := env.startClient(t, "alice", "Alice")
	readFrame(t, conn)

	sendMessage(t, conn, `{"message": "  hello  "}`)

	echo := readFrame(t, conn)
	if echo.Message != "hello" {
		t.Fatalf("echo message = %q, want trimmed text", echo.Message)
	}

	rec := env.messages.single(t)
	if rec.Text != "hello" {
		t.Fatalf("persisted text = %q, want trimmed text", rec.Text)
	}
}

// TestEmptyMessageSilentlyDropped verifies that whitespace-only and malformed
// payloads produce no record and no outbound frames.
func TestEmptyMessageSilentlyDropped(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	_, conn := env.startClient(t, "alice", "Alice")
	readFrame(t, conn)

	sendMessage(t, conn, `{"message": "   "}`)
	sendMessage(t, conn, `{"message": ""}`)
	sendMessage(t, conn, `not json at all`)

	expectNoFrame(t, conn)
	if got := env.messages.count(); got != 0 {
		t.Fatalf("record count = %d, want 0", got)
	}
}

// TestGenerationFailureSynthesized verifies that a bridge failure is absorbed
// into the same storage slot and bot frame as a success, as a human-readable string.
func TestGenerationFailureSynthesized(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{err: context.DeadlineExceeded})

	_, conn := env.startClient(t, "alice", "Alice")
	readFrame(t, conn)

	sendMessage(t, conn, `{"message": "hello"}`)
	readFrame(t, conn) // user echo

	bot := readFrame(t, conn)
	if bot.Type != EventBot {
		t.Fatalf("frame type = %q, want bot", bot.Type)
	}
	if !strings.HasPrefix(bot.Message, "Error contacting OpenAI:") {
		t.Fatalf("synthesized error = %q", bot.Message)
	}

	rec := env.messages.single(t)
	if rec.Response == nil || *rec.Response != bot.Message {
		t.Fatalf("record response %v does not match bot frame %q", rec.Response, bot.Message)
	}
}

// TestPrivateDeliveryIsolation verifies a response for one identity reaches
// all of that identity's sockets and none of anyone else's.
func TestPrivateDeliveryIsolation(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "secret answer"})

	_, aliceA := env.startClient(t, "alice", "Alice")
	readFrame(t, aliceA)
	_, aliceB := env.startClient(t, "alice", "Alice")
	readFrame(t, aliceB)
	_, bob := env.startClient(t, "bob", "Bob")
	readFrame(t, bob)

	sendMessage(t, aliceA, `{"message": "hello"}`)

	// Echo goes to the sending socket only.
	echo := readFrame(t, aliceA)
	if echo.Type != EventUser {
		t.Fatalf("expected user echo on sender, got %+v", echo)
	}

	// The bot response fans out to both of alice's sockets.
	botA := readFrame(t, aliceA)
	botB := readFrame(t, aliceB)
	if botA.Type != EventBot || botB.Type != EventBot {
		t.Fatalf("bot frames = %+v / %+v", botA, botB)
	}
	if botA.Message != "secret answer" || botB.Message != "secret answer" {
		t.Fatalf("bot messages = %q / %q", botA.Message, botB.Message)
	}

	// Bob sees nothing.
	expectNoFrame(t, bob)
}

// TestSlowGenerationDoesNotBlockOthers verifies that one connection's slow
// generation call does not stall another connection's round trip.
func TestSlowGenerationDoesNotBlockOthers(t *testing.T) {
	slowEnv := newTestEnv(t, &fakeGenerator{text: "slow", delay: 500 * time.Millisecond})

	_, slowConn := slowEnv.startClient(t, "slow", "Slow")
	readFrame(t, slowConn)

	// Fast client shares hub and presence but uses an instant generator.
	fastServices := slowEnv.services
	fastServices.Generation = &fakeGenerator{text: "fast"}
	serverConn, fastConn := socketPair(t)
	fast := NewClient(slowEnv.hub, serverConn, user.Identity{ID: "fast", Nickname: "Fast"}, fastServices, slowEnv.settings)
	go fast.WritePump()
	fast.Admit(context.Background())
	go fast.ReadPump()
	readFrame(t, fastConn)

	sendMessage(t, slowConn, `{"message": "ponder"}`)
	readFrame(t, slowConn) // slow echo

	start := time.Now()
	sendMessage(t, fastConn, `{"message": "quick"}`)
	readFrame(t, fastConn) // fast echo
	bot := readFrame(t, fastConn)
	if bot.Message != "fast" {
		t.Fatalf("fast bot frame = %+v", bot)
	}
	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Fatalf("fast round trip took %v, was blocked by slow generation", elapsed)
	}

	// The slow response still arrives.
	slowBot := readFrame(t, slowConn)
	if slowBot.Message != "slow" {
		t.Fatalf("slow bot frame = %+v", slowBot)
	}
}
