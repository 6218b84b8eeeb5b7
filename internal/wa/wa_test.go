package wa

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	fields := map[string]string{
		"name":         "Budi Santoso",
		"class":        "7A",
		"queue_number": "3",
	}

	out := Render("Halo, {name} ({class}) nomor {queue_number}", fields)
	assert.Equal(t, "Halo, Budi Santoso (7A) nomor 3", out)

	// Unknown placeholders pass through untouched.
	out = Render("{name} {unknown} {}", fields)
	assert.Equal(t, "Budi Santoso {unknown} {}", out)

	assert.Equal(t, "no placeholders", Render("no placeholders", fields))
	assert.Equal(t, "", Render("", fields))
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"081234567890", "6281234567890"},
		{"+6281234567890", "6281234567890"},
		{"6281234567890", "6281234567890"},
		{"0812-3456-7890", "6281234567890"},
		{"(0812) 3456 7890", "6281234567890"},
		{"+62 812-3456-7890", "6281234567890"},
		{"13125550100", "13125550100"}, // foreign number left alone
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhone(tc.in), "input %q", tc.in)
	}
}

func TestSendPostsToGateway(t *testing.T) {
	var gotAuth string
	var gotBody gatewayRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := Config{Enabled: true, APIURL: server.URL, APIToken: "secret-token"}
	err := send(cfg, "0812 3456 7890", "pesan uji")
	assert.NoError(t, err)
	// Raw token, no Bearer prefix.
	assert.Equal(t, "secret-token", gotAuth)
	assert.Equal(t, "6281234567890", gotBody.Phone)
	assert.Equal(t, "pesan uji", gotBody.Message)
}

func TestSendNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := send(Config{APIURL: server.URL}, "0812", "x")
	assert.Error(t, err)
}

func TestDispatchSkipsSilently(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer server.Close()

	// Disabled gateway: nothing goes out.
	assert.False(t, Dispatch(Config{Enabled: false, APIURL: server.URL}, "0812", "x"))
	// Missing URL.
	assert.False(t, Dispatch(Config{Enabled: true}, "0812", "x"))
	// Missing phone.
	assert.False(t, Dispatch(Config{Enabled: true, APIURL: server.URL}, "", "x"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&hits))

	// Enabled with phone: exactly one request arrives.
	assert.True(t, Dispatch(Config{Enabled: true, APIURL: server.URL}, "0812", "x"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&hits) == 1
	}, 2*time.Second, 20*time.Millisecond)
}
