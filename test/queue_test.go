package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antrian_rapor/internal/handlers"
	"antrian_rapor/internal/localtime"
	"antrian_rapor/internal/models"
	"antrian_rapor/internal/settings"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/ws"
)

// authMiddlewareTest injects the principal from test headers instead of a JWT.
func authMiddlewareTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if idStr := c.Request.Header.Get("X-Test-UserID"); idStr != "" {
			if id, err := strconv.Atoi(idStr); err == nil {
				c.Set("userID", uint(id))
			}
		}
		c.Set("role", c.Request.Header.Get("X-Test-Role"))
		c.Set("class", c.Request.Header.Get("X-Test-Class"))
		c.Next()
	}
}

func setupTestServer(t *testing.T) *httptest.Server {
	if os.Getenv("ENV_CHECK") == "" {
		godotenv.Load("../.env")
	}
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("testing database not configured")
	}

	storage.ConnectTestingDatabase()
	storage.DB.Exec("TRUNCATE TABLE users, students, queue_entries, settings, announcements RESTART IDENTITY CASCADE;")

	err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.QueueEntry{},
		&models.Setting{},
		&models.Announcement{},
	)
	require.NoError(t, err, "migration failed")

	storage.InitRedis()
	settings.Invalidate()

	hubOnce.Do(func() { go ws.HubInstance.Run() })

	gin.SetMode(gin.TestMode)
	r := gin.Default()

	api := r.Group("/api")
	api.GET("/queue", handlers.ListQueueHandler)
	api.GET("/queue/history", handlers.HistoryHandler)
	api.GET("/queue/stats", handlers.StatsHandler)

	authed := api.Group("", authMiddlewareTest())
	authed.POST("/queue/checkin", handlers.CheckInHandler)
	authed.POST("/queue/:id/call", handlers.CallHandler)
	authed.POST("/queue/:id/cancel", handlers.CancelCallHandler)
	authed.POST("/queue/:id/finish", handlers.FinishHandler)
	authed.POST("/queue/:id/skip", handlers.SkipHandler)
	authed.POST("/queue/:id/revert", handlers.RevertFinishHandler)
	authed.POST("/queue/:id/notify", handlers.NotifyHandler)
	authed.DELETE("/queue/:id", handlers.DeleteQueueHandler)
	authed.DELETE("/queue", handlers.ResetQueueHandler)

	r.GET("/ws", ws.ServeWS)

	return httptest.NewServer(r)
}

var hubOnce sync.Once

type principal struct {
	id    uint
	role  string
	class string
}

var (
	asAdmin    = principal{id: 1, role: models.RoleAdmin}
	asSatpam   = principal{id: 2, role: models.RoleSatpam}
	asTeacherA = principal{id: 3, role: models.RoleTeacher, class: "7A"}
	asTeacherB = principal{id: 4, role: models.RoleTeacher, class: "7B"}
)

func doJSON(t *testing.T, method, url string, who principal, body interface{}) (*http.Response, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-UserID", fmt.Sprintf("%d", who.id))
	req.Header.Set("X-Test-Role", who.role)
	req.Header.Set("X-Test-Class", who.class)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	json.NewDecoder(res.Body).Decode(&decoded)
	res.Body.Close()
	return res, decoded
}

// collectEvents pumps websocket messages into a channel in the background.
func collectEvents(conn *websocket.Conn) <-chan ws.WSMessage {
	events := make(chan ws.WSMessage, 64)
	go func() {
		defer close(events)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ws.WSMessage
			if json.Unmarshal(raw, &msg) == nil {
				events <- msg
			}
		}
	}()
	return events
}

func waitForEvent(t *testing.T, events <-chan ws.WSMessage, eventType string) ws.WSMessage {
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				t.Fatalf("websocket closed while waiting for %s", eventType)
			}
			if msg.EventType == eventType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestQueueFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	// Spy gateway counting outbound notifications.
	var gatewayHits int64
	spy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&gatewayHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer spy.Close()

	require.NoError(t, settings.SetAll(storage.DB, map[string]string{
		settings.KeyWAEnabled:         "false",
		settings.KeyWAApiURL:          spy.URL,
		settings.KeyWACallTemplate:    "{name} dipanggil ke kelas {class}",
		settings.KeyWACheckinTemplate: "{name} antri nomor {queue_number}",
	}))

	student1 := models.Student{NIS: "2024001", Name: "Budi Santoso", Class: "7A", ParentName: "Pak Santoso"}
	student2 := models.Student{NIS: "2024002", Name: "Siti Aminah", Class: "7A"}
	require.NoError(t, storage.DB.Create(&student1).Error)
	require.NoError(t, storage.DB.Create(&student2).Error)

	// Display session registers before anything happens.
	wsURL := "ws" + ts.URL[4:] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "websocket dial failed")
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"event": "register", "role": "tv"}))
	events := collectEvents(conn)

	// Check-in: sequential numbering within the class.
	res, body := doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{
		"nis":          "2024001",
		"parent_phone": "0812-3456-7890",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, float64(1), body["queue_number"])
	assert.Equal(t, models.StatusWaiting, body["status"])
	assert.Equal(t, "6281234567890", body["parent_phone"])
	entry1ID := int(body["id"].(float64))
	waitForEvent(t, events, ws.EventQueueUpdated)

	res, body = doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2024002"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, float64(2), body["queue_number"])

	// Same student, same day: conflict, no second row.
	res, body = doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2024001"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "ALREADY_CHECKED_IN", body["code"])
	var count int64
	storage.DB.Model(&models.QueueEntry{}).Where("student_id = ?", student1.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// Gateway disabled: the check-ins produced zero outbound requests.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&gatewayHits))

	entry1URL := ts.URL + "/api/queue/" + strconv.Itoa(entry1ID)

	// Cross-class teacher is rejected; owning teacher succeeds.
	res, body = doJSON(t, "POST", entry1URL+"/call", asTeacherB, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	res, body = doJSON(t, "POST", entry1URL+"/call", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	broadcast := body["broadcast"].(map[string]interface{})
	assert.Equal(t, "CALL", broadcast["type"])
	assert.Equal(t, "Budi Santoso", broadcast["studentName"])
	assert.Equal(t, "7A", broadcast["className"])
	firstCall := body["queue"].(map[string]interface{})["called_time"].(string)

	called := waitForEvent(t, events, ws.EventStudentCalled)
	assert.Equal(t, "Budi Santoso", called.Data["studentName"])
	assert.Equal(t, "7A", called.Data["className"])

	// Recall is allowed and re-stamps called_time.
	time.Sleep(50 * time.Millisecond)
	res, body = doJSON(t, "POST", entry1URL+"/call", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	secondCall := body["queue"].(map[string]interface{})["called_time"].(string)
	first, err := time.Parse(time.RFC3339Nano, firstCall)
	require.NoError(t, err)
	second, err := time.Parse(time.RFC3339Nano, secondCall)
	require.NoError(t, err)
	assert.True(t, second.After(first), "recall must re-stamp called_time")

	// With the gateway enabled, a call sends exactly one notification.
	require.NoError(t, settings.SetAll(storage.DB, map[string]string{settings.KeyWAEnabled: "true"}))
	res, _ = doJSON(t, "POST", entry1URL+"/call", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&gatewayHits) == 1
	}, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, settings.SetAll(storage.DB, map[string]string{settings.KeyWAEnabled: "false"}))

	// Finish, then the admin-only revert.
	res, body = doJSON(t, "POST", entry1URL+"/finish", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "FINISH", body["broadcast"].(map[string]interface{})["type"])
	waitForEvent(t, events, ws.EventStudentFinished)

	res, _ = doJSON(t, "POST", entry1URL+"/revert", asTeacherA, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = doJSON(t, "POST", entry1URL+"/revert", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.StatusCalled, body["status"])
	assert.Nil(t, body["finished_time"])

	// Cancel resets everything back to waiting.
	res, body = doJSON(t, "POST", entry1URL+"/cancel", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.StatusWaiting, body["status"])
	assert.Nil(t, body["called_time"])
	assert.Nil(t, body["called_by"])
	assert.Nil(t, body["finished_time"])

	// Finishing straight from waiting is allowed.
	res, body = doJSON(t, "POST", entry1URL+"/finish", asTeacherA, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, models.StatusFinished, body["queue"].(map[string]interface{})["status"].(string))

	// Stats reflect one finished and one waiting entry in 7A.
	res, body = doJSON(t, "GET", ts.URL+"/api/queue/stats", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	totals := body["totals"].(map[string]interface{})
	assert.Equal(t, float64(1), totals["finished"])
	assert.Equal(t, float64(1), totals["waiting"])

	// Deleting the entry frees the slot for a fresh check-in.
	res, _ = doJSON(t, "DELETE", entry1URL, asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2024001"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, models.StatusWaiting, body["status"])

	// Reset clears the whole day.
	res, _ = doJSON(t, "DELETE", ts.URL+"/api/queue", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	storage.DB.Model(&models.QueueEntry{}).Where("date = ?", localtime.Today()).Count(&count)
	assert.Equal(t, int64(0), count)
}

// Concurrent check-ins inside one class must never share a queue number;
// the advisory lock serializes the count+1 allocation per (class, date).
func TestConcurrentCheckinNumbering(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	const n = 8
	for i := 0; i < n; i++ {
		s := models.Student{
			NIS:   fmt.Sprintf("2025%03d", i),
			Name:  fmt.Sprintf("Siswa %d", i),
			Class: "8A",
		}
		require.NoError(t, storage.DB.Create(&s).Error)
	}

	numbers := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(nis string) {
			defer wg.Done()
			res, body := doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": nis})
			if assert.Equal(t, http.StatusCreated, res.StatusCode) {
				numbers <- int(body["queue_number"].(float64))
			}
		}(fmt.Sprintf("2025%03d", i))
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for num := range numbers {
		assert.False(t, seen[num], "queue number %d allocated twice", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "missing queue number %d", i)
	}
}

// The stats endpoint shows the call announced last per class; a recall
// re-stamps called_time and takes the slot back.
func TestStatsActiveCallLatestWins(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	first := models.Student{NIS: "2026001", Name: "Agus Wijaya", Class: "9A"}
	second := models.Student{NIS: "2026002", Name: "Dewi Lestari", Class: "9A"}
	require.NoError(t, storage.DB.Create(&first).Error)
	require.NoError(t, storage.DB.Create(&second).Error)

	res, body := doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2026001"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	firstURL := ts.URL + "/api/queue/" + strconv.Itoa(int(body["id"].(float64)))

	res, body = doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2026002"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	secondURL := ts.URL + "/api/queue/" + strconv.Itoa(int(body["id"].(float64)))

	res, _ = doJSON(t, "POST", firstURL+"/call", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	time.Sleep(50 * time.Millisecond)
	res, _ = doJSON(t, "POST", secondURL+"/call", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = doJSON(t, "GET", ts.URL+"/api/queue/stats", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	activeCalls := body["activeCalls"].(map[string]interface{})
	assert.Equal(t, "Dewi Lestari", activeCalls["9A"])

	// Recalling the first student re-announces them.
	time.Sleep(50 * time.Millisecond)
	res, _ = doJSON(t, "POST", firstURL+"/call", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = doJSON(t, "GET", ts.URL+"/api/queue/stats", asAdmin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	activeCalls = body["activeCalls"].(map[string]interface{})
	assert.Equal(t, "Agus Wijaya", activeCalls["9A"])
}

// A failing duplicate probe must surface as a server error, not fall
// through to the insert.
func TestCheckinSurfacesStorageError(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	s := models.Student{NIS: "2027001", Name: "Rina Putri", Class: "9B"}
	require.NoError(t, storage.DB.Create(&s).Error)

	require.NoError(t, storage.DB.Exec("ALTER TABLE queue_entries RENAME TO queue_entries_bak").Error)
	defer storage.DB.Exec("ALTER TABLE queue_entries_bak RENAME TO queue_entries")

	res, body := doJSON(t, "POST", ts.URL+"/api/queue/checkin", asSatpam, map[string]string{"nis": "2027001"})
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "DB_ERROR", body["code"])
}
