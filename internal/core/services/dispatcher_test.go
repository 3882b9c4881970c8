package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novahub/internal/core/domain"
)

func TestTypingReachesOtherMember(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.send(a, `{"type":"typing_start","data":{"chatId":"C"}}`)

	frames := b.received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "typing_start", frames[0]["type"])
	assert.Equal(t, "A", frames[0]["userId"])
	assert.Equal(t, "C", frames[0]["chatId"])
	assert.Equal(t, "2026-03-01T12:00:00.000Z", frames[0]["timestamp"])
}

func TestTypingStopUsesSameGate(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}, "D": {"B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.send(a, `{"type":"typing_stop","data":{"chatId":"C"}}`)
	h.send(a, `{"type":"typing_stop","data":{"chatId":"D"}}`)

	frames := b.received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "typing_stop", frames[0]["type"])
	assert.Equal(t, "C", frames[0]["chatId"])
}

func TestTypingFromNonMemberIsDroppedSilently(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	x := h.connect(t, "X")
	b := h.connect(t, "B")

	h.send(x, `{"type":"typing_start","data":{"chatId":"C"}}`)

	assert.Empty(t, b.received(t))
	assert.Empty(t, x.received(t), "no error frame may leak membership")
}

func TestTypingUsesCachedMembership(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	// Joined in the store after A connected; the cache has not heard of it.
	h.store.addMember("C", "A")
	h.send(a, `{"type":"typing_start","data":{"chatId":"C"}}`)

	assert.Empty(t, b.received(t))
}

func TestMalformedFramesAnswerSenderOnly(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	cases := []struct {
		frame  string
		reason string
	}{
		{`not json`, "invalid message format"},
		{`{"data":{"chatId":"C"}}`, "invalid message format"},
		{`{"type":"typing_start"}`, "invalid message format"},
		{`{"type":"typing_start","data":{"chatId":""}}`, "chatId is required"},
		{`{"type":"typing_start","data":"C"}`, "invalid message format"},
		{`{"type":"typing_start","data":{"chatId":5}}`, "invalid message format"},
		{`{"type":"message_read","data":{"chatId":"C"}}`, "messageId is required"},
		{`{"type":"user_status","data":{"status":"busy"}}`, "invalid status"},
	}
	for _, tc := range cases {
		a.reset()
		h.send(a, tc.frame)

		got := a.received(t)
		require.Len(t, got, 1, tc.frame)
		assert.Equal(t, "error", got[0]["type"], tc.frame)
		assert.Equal(t, tc.reason, got[0]["error"], tc.frame)
		assert.Equal(t, "2026-03-01T12:00:00.000Z", got[0]["timestamp"], tc.frame)
	}

	assert.Empty(t, b.received(t))
	_, ok := h.registry.Lookup("A")
	assert.True(t, ok, "connection stays registered after malformed input")
	assert.Zero(t, a.closeCount())
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.send(a, `{"type":"reaction_added","data":{"chatId":"C"}}`)

	assert.Empty(t, a.received(t))
	assert.Empty(t, b.received(t))
}

func TestMessageReadIsIdempotentPerUser(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	tick := fixedNow
	h.signals.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	h.send(a, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)
	first := h.store.receipts[[2]string{"M", "A"}]
	h.send(a, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)
	second := h.store.receipts[[2]string{"M", "A"}]

	assert.Len(t, h.store.receipts, 1)
	assert.True(t, second.After(first))

	frames := b.received(t)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Equal(t, "message_read", f["type"])
		assert.Equal(t, "M", f["messageId"])
		assert.Equal(t, "A", f["userId"])
		assert.Equal(t, "C", f["chatId"])
	}
	assert.Len(t, a.received(t), 2, "the reader is a member and receives its own receipt")
}

func TestMessageReadChecksStoreMembership(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	x := h.connect(t, "X")
	b := h.connect(t, "B")

	h.send(x, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)

	assert.Zero(t, h.store.upserts)
	assert.Empty(t, b.received(t))
	assert.Empty(t, x.received(t))
}

func TestMessageReadLogsReceipt(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	var buf bytes.Buffer
	h.signals.log = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := h.connect(t, "A")
	h.connect(t, "B")

	h.send(a, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "signals - message read - receipt recorded", line["msg"])
	assert.Equal(t, "M", line["message_id"])
	assert.Equal(t, "C", line["chat_id"])
	assert.EqualValues(t, 2, line["recipients"])
}

func TestMessageReadStoreFailureSkipsBroadcast(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")
	h.store.failWrite = errors.New("db down")

	h.send(a, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)

	assert.Empty(t, b.received(t))
	assert.Empty(t, a.received(t))
	_, ok := h.registry.Lookup("A")
	assert.True(t, ok)
}

func TestUserStatusBroadcastsToCachedChats(t *testing.T) {
	h := newTestHub(map[string][]string{"C1": {"A", "B"}, "C2": {"A", "D"}, "C3": {"B", "D"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")
	d := h.connect(t, "D")

	h.send(a, `{"type":"user_status","data":{"status":"away"}}`)

	assert.Equal(t, fixedNow, h.store.lastSeen["A"])
	assert.Equal(t, domain.StatusAway, h.presence.statuses["A"])
	for _, c := range []*fakeClient{b, d} {
		frames := c.received(t)
		require.Len(t, frames, 1, c.userID)
		assert.Equal(t, "user_status", frames[0]["type"])
		assert.Equal(t, "A", frames[0]["userId"])
		assert.Equal(t, "away", frames[0]["status"])
	}
	assert.Len(t, a.received(t), 2, "one frame per shared chat")
}

func TestUserStatusStoreFailureSkipsBroadcast(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")
	h.store.failWrite = errors.New("db down")

	h.send(a, `{"type":"user_status","data":{"status":"online"}}`)

	assert.Empty(t, b.received(t))
	assert.Empty(t, h.presence.statuses)
}

func TestUserStatusPresenceFailureIsBestEffort(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")
	h.presence.err = errors.New("redis down")

	h.send(a, `{"type":"user_status","data":{"status":"online"}}`)

	assert.Len(t, b.received(t), 1)
}

func TestFramesFromOneConnectionKeepOrder(t *testing.T) {
	h := newTestHub(map[string][]string{"C": {"A", "B"}})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.send(a, `{"type":"typing_start","data":{"chatId":"C"}}`)
	h.send(a, `{"type":"message_read","data":{"messageId":"M","chatId":"C"}}`)
	h.send(a, `{"type":"typing_stop","data":{"chatId":"C"}}`)

	frames := b.received(t)
	require.Len(t, frames, 3)
	assert.Equal(t, "typing_start", frames[0]["type"])
	assert.Equal(t, "message_read", frames[1]["type"])
	assert.Equal(t, "typing_stop", frames[2]["type"])
}
