package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodayIsCivilDateInConfiguredZone(t *testing.T) {
	today := Today()
	parsed, err := time.ParseInLocation(DateLayout, today, Location())
	assert.NoError(t, err)
	assert.Equal(t, Now().Year(), parsed.Year())

	// Default zone is UTC+7 regardless of the host timezone.
	_, offset := Now().Zone()
	assert.Equal(t, 7*60*60, offset)
}
