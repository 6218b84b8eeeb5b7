// Package localtime pins all civil-date arithmetic to the institution's
// timezone (QUEUE_TZ, default Asia/Jakarta). The queue day rolls over at
// local midnight, never at UTC midnight.
package localtime

import (
	"log"
	"os"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

var (
	once sync.Once
	loc  *time.Location
)

func Location() *time.Location {
	once.Do(func() {
		name := os.Getenv("QUEUE_TZ")
		if name == "" {
			name = "Asia/Jakarta"
		}
		l, err := time.LoadLocation(name)
		if err != nil {
			log.Printf("unknown timezone %q, falling back to UTC+7: %v", name, err)
			l = time.FixedZone("WIB", 7*60*60)
		}
		loc = l
	})
	return loc
}

func Now() time.Time {
	return time.Now().In(Location())
}

// Today returns the current civil date in the configured timezone.
func Today() string {
	return Now().Format(DateLayout)
}
