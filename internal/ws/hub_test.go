package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"antrian_rapor/internal/models"
)

func newTestClient(h *Hub) *Client {
	return &Client{Hub: h, Send: make(chan []byte, 256)}
}

func TestOnlineClassesTracksTeachers(t *testing.T) {
	h := NewHub()
	go h.Run()

	teacherA := newTestClient(h)
	teacherB := newTestClient(h)
	display := newTestClient(h)
	h.register <- teacherA
	h.register <- teacherB
	h.register <- display

	h.Identify(teacherA, models.RoleTeacher, "7A")
	h.Identify(teacherB, models.RoleTeacher, "7B")
	h.Identify(display, models.RoleTV, "")

	assert.Eventually(t, func() bool {
		classes := h.OnlineClasses()
		return len(classes) == 2 && classes[0] == "7A" && classes[1] == "7B"
	}, time.Second, 10*time.Millisecond)

	h.unregister <- teacherA
	assert.Eventually(t, func() bool {
		classes := h.OnlineClasses()
		return len(classes) == 1 && classes[0] == "7B"
	}, time.Second, 10*time.Millisecond)
}

func TestTeacherDisconnectBroadcastsOnlineStatus(t *testing.T) {
	h := NewHub()
	go h.Run()

	teacher := newTestClient(h)
	display := newTestClient(h)
	h.register <- teacher
	h.register <- display
	h.Identify(teacher, models.RoleTeacher, "8C")

	// Register broadcast first, then the disconnect broadcast.
	h.unregister <- teacher

	deadline := time.After(time.Second)
	var last WSMessage
	for {
		select {
		case raw := <-display.Send:
			var msg WSMessage
			assert.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, EventOnlineStatus, msg.EventType)
			last = msg
			classes := last.Data["classes"].([]interface{})
			if len(classes) == 0 {
				return // disconnect observed, class list emptied
			}
		case <-deadline:
			t.Fatal("never saw the empty online-status broadcast")
		}
	}
}

func TestBroadcastEventReachesAllSessions(t *testing.T) {
	h := NewHub()
	go h.Run()

	first := newTestClient(h)
	second := newTestClient(h)
	h.register <- first
	h.register <- second

	// Let Run pick up both registrations before broadcasting.
	assert.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 2
	}, time.Second, 10*time.Millisecond)

	h.BroadcastEvent(EventStudentCalled, map[string]interface{}{
		"studentName": "Budi Santoso",
		"className":   "7A",
	})

	for _, client := range []*Client{first, second} {
		select {
		case raw := <-client.Send:
			var msg WSMessage
			assert.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, EventStudentCalled, msg.EventType)
			assert.Equal(t, "Budi Santoso", msg.Data["studentName"])
			assert.Equal(t, "7A", msg.Data["className"])
		case <-time.After(time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}
