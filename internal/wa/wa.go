// Package wa renders parent notification messages and delivers them to the
// configured WhatsApp-style gateway. Delivery is fire-and-forget: the caller
// never waits for, nor learns about, the outcome.
package wa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"antrian_rapor/internal/settings"
)

// Config is the gateway configuration loaded from settings.
type Config struct {
	Enabled         bool
	APIURL          string
	APIToken        string
	CheckinTemplate string
	CallTemplate    string
}

// LoadConfig reads the gateway settings in one pass.
func LoadConfig(db *gorm.DB) Config {
	all, err := settings.All(db)
	if err != nil {
		log.Println("wa: failed to load settings:", err)
		return Config{}
	}
	return Config{
		Enabled:         all[settings.KeyWAEnabled] == "true",
		APIURL:          all[settings.KeyWAApiURL],
		APIToken:        all[settings.KeyWAApiToken],
		CheckinTemplate: all[settings.KeyWACheckinTemplate],
		CallTemplate:    all[settings.KeyWACallTemplate],
	}
}

// Render substitutes {placeholder} tokens with the given field values.
// Placeholders without a matching field pass through unchanged.
func Render(template string, fields map[string]string) string {
	out := template
	for key, value := range fields {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

// NormalizePhone strips spaces, dashes and parentheses, then applies the
// Indonesian country-code convention: a leading 0 becomes 62, a leading +62
// loses the plus. Anything else is left as-is.
func NormalizePhone(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(raw)
	switch {
	case strings.HasPrefix(cleaned, "+62"):
		return strings.TrimPrefix(cleaned, "+")
	case strings.HasPrefix(cleaned, "0"):
		return "62" + cleaned[1:]
	default:
		return cleaned
	}
}

var client = &http.Client{Timeout: 10 * time.Second}

type gatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func send(cfg Config, phone, message string) error {
	body, err := json.Marshal(gatewayRequest{Phone: NormalizePhone(phone), Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// The gateway expects the raw token, no Bearer prefix.
	req.Header.Set("Authorization", cfg.APIToken)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

// Dispatch fires the message at the gateway in a detached goroutine and
// reports whether a send was attempted. Disabled gateway, missing URL or
// missing phone all skip silently; delivery errors are logged and swallowed.
func Dispatch(cfg Config, phone, message string) bool {
	if !cfg.Enabled || cfg.APIURL == "" || phone == "" {
		return false
	}
	go func() {
		if err := send(cfg, phone, message); err != nil {
			log.Println("wa: send failed:", err)
		}
	}()
	return true
}
