package realtime

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		URL:            "ws://test/realtime",
		ConnectTimeout: 50 * time.Millisecond,
		InitialDelay:   time.Millisecond,
		MaxDelay:       4 * time.Millisecond,
		MaxAttempts:    3,
	}
}

func newTestClient(t *testing.T, token string) (*Client, *fakeDialer, *tokenBox) {
	t.Helper()
	d := &fakeDialer{}
	tokens := newTokenBox(token)
	c := NewClient(d, tokens, &testutil.MockLogger{}, testOptions())
	t.Cleanup(c.Disconnect)
	return c, d, tokens
}

func startedFrame(id string) string {
	return `{"event":"timeEntry:started","data":{"_id":"` + id + `","projectId":"p1","startTime":"2026-03-02T09:00:00Z"}}`
}

func receive(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan domain.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, time.Millisecond,
		"state %s, want %s", c.State(), want)
}

func TestClient_Connect_NotLoggedIn(t *testing.T) {
	c, d, _ := newTestClient(t, "")

	err := c.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
	assert.Equal(t, int32(0), d.calls.Load())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_Connect_PublishesToAllSubscribers(t *testing.T) {
	// Setup
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	ch1, unsub1 := c.Subscribe()
	defer unsub1()
	ch2, unsub2 := c.Subscribe()
	defer unsub2()

	// Execute
	require.NoError(t, c.Connect(context.Background()))
	conn.send(startedFrame("e1"))

	// Assert
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, "e1", receive(t, ch1).(domain.TimeEntryStarted).EntryID)
	assert.Equal(t, "e1", receive(t, ch2).(domain.TimeEntryStarted).EntryID)
	assert.Equal(t, []string{"tok"}, d.seenTokens())
}

func TestClient_Connect_NoOpWhenConnected(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	d.script(dialResult{conn: newFakeConn()})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, int32(1), d.calls.Load())
}

func TestClient_Connect_Timeout(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	d.script(dialResult{block: true})

	err := c.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrConnectTimeout)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_Connect_HandshakeUnauthorizedPublishesTokenError(t *testing.T) {
	c, d, _ := newTestClient(t, "stale")
	d.script(dialResult{err: &HandshakeError{Status: http.StatusUnauthorized, Err: assert.AnError}})
	ch, unsub := c.Subscribe()
	defer unsub()

	err := c.Connect(context.Background())

	assert.Error(t, err)
	_, ok := receive(t, ch).(domain.TokenError)
	assert.True(t, ok)
}

func TestClient_TokenErrorFrame(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	ch, unsub := c.Subscribe()
	defer unsub()
	require.NoError(t, c.Connect(context.Background()))

	conn.send(`{"event":"error","data":{"message":"jwt expired"}}`)

	ev, ok := receive(t, ch).(domain.TokenError)
	require.True(t, ok)
	assert.Equal(t, "jwt expired", ev.Message)
	assert.Equal(t, StateConnected, c.State(), "the owner decides what to do")
}

func TestClient_DropsMalformedAndUnknownFrames(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	ch, unsub := c.Subscribe()
	defer unsub()
	require.NoError(t, c.Connect(context.Background()))

	conn.send(`not json`)
	conn.send(`{"event":"chat:message","data":{}}`)
	conn.send(`{"event":"error","data":{"message":"rate limited"}}`)
	conn.send(startedFrame("e1"))

	assert.Equal(t, "e1", receive(t, ch).(domain.TimeEntryStarted).EntryID)
	assertQuiet(t, ch)
}

func TestClient_ReconnectsAfterDropWithFreshToken(t *testing.T) {
	// Setup
	c, d, tokens := newTestClient(t, "tok-1")
	first, second := newFakeConn(), newFakeConn()
	d.script(dialResult{conn: first}, dialResult{err: assert.AnError}, dialResult{conn: second})
	ch, unsub := c.Subscribe()
	defer unsub()
	require.NoError(t, c.Connect(context.Background()))

	// Execute
	tokens.set("tok-2")
	first.drop()
	require.Eventually(t, func() bool { return d.calls.Load() == 3 }, time.Second, time.Millisecond)
	waitState(t, c, StateConnected)
	second.send(startedFrame("e2"))

	// Assert
	assert.Equal(t, "e2", receive(t, ch).(domain.TimeEntryStarted).EntryID)
	assert.Equal(t, []string{"tok-1", "tok-2", "tok-2"}, d.seenTokens())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	require.NoError(t, c.Connect(context.Background()))

	conn.drop()

	waitState(t, c, StateGaveUp)
	assert.Equal(t, int32(1+testOptions().MaxAttempts), d.calls.Load())

	// A later Connect starts over.
	d.script(dialResult{conn: newFakeConn()})
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())
}

func TestClient_NoDuplicatePublicationsAcrossReconnect(t *testing.T) {
	// Setup
	c, d, _ := newTestClient(t, "tok")
	first, second, third := newFakeConn(), newFakeConn(), newFakeConn()
	d.script(dialResult{conn: first}, dialResult{conn: second}, dialResult{conn: third})
	ch, unsub := c.Subscribe()
	defer unsub()
	require.NoError(t, c.Connect(context.Background()))

	// Execute: one event per connection, with a drop and an explicit reconnect
	first.send(startedFrame("e1"))
	assert.Equal(t, "e1", receive(t, ch).(domain.TimeEntryStarted).EntryID)
	first.drop()
	require.Eventually(t, func() bool { return d.calls.Load() == 2 }, time.Second, time.Millisecond)
	waitState(t, c, StateConnected)

	second.send(startedFrame("e2"))
	assert.Equal(t, "e2", receive(t, ch).(domain.TimeEntryStarted).EntryID)

	require.NoError(t, c.Reconnect(context.Background()))
	assert.True(t, second.isClosed())
	third.send(startedFrame("e3"))

	// Assert
	assert.Equal(t, "e3", receive(t, ch).(domain.TimeEntryStarted).EntryID)
	assertQuiet(t, ch)
	assert.Equal(t, int32(3), d.calls.Load())
}

func TestClient_Disconnect(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, conn.isClosed())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), d.calls.Load(), "no reconnect after an intentional disconnect")
}

func TestClient_ReconnectStopsWhenSignedOut(t *testing.T) {
	c, d, tokens := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	require.NoError(t, c.Connect(context.Background()))

	tokens.set("")
	conn.drop()

	waitState(t, c, StateDisconnected)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestClient_Unsubscribe(t *testing.T) {
	c, d, _ := newTestClient(t, "tok")
	conn := newFakeConn()
	d.script(dialResult{conn: conn})
	ch1, unsub1 := c.Subscribe()
	ch2, unsub2 := c.Subscribe()
	defer unsub2()
	require.NoError(t, c.Connect(context.Background()))

	unsub1()
	unsub1()
	conn.send(startedFrame("e1"))

	receive(t, ch2)
	assertQuiet(t, ch1)
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		in, limit, want time.Duration
	}{
		{time.Second, 5 * time.Second, 2 * time.Second},
		{2 * time.Second, 5 * time.Second, 4 * time.Second},
		{4 * time.Second, 5 * time.Second, 5 * time.Second},
		{5 * time.Second, 5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextDelay(tt.in, tt.limit))
	}
}
