package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlotLayout(t *testing.T) {
	layout, err := NewSlotLayout([]string{"08:00", "08:20", "08:40"}, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:20", "08:40"}, layout.Labels())
	assert.Equal(t, 20*time.Minute, layout.Width())

	start, end := layout.rangeOn(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 1)
	assert.Equal(t, time.Date(2024, 6, 3, 8, 20, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 3, 8, 40, 0, 0, time.UTC), end)
}

func TestNewSlotLayoutRejects(t *testing.T) {
	cases := map[string]struct {
		labels []string
		width  time.Duration
	}{
		"no labels":  {nil, 30 * time.Minute},
		"zero width": {[]string{"09:00"}, 0},
		"bad label":  {[]string{"9 o'clock"}, 30 * time.Minute},
		"duplicate":  {[]string{"09:00", "09:00"}, 30 * time.Minute},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSlotLayout(tc.labels, tc.width)
			assert.Error(t, err)
		})
	}
}

func TestDefaultSlotLayoutHasLunchGap(t *testing.T) {
	labels := DefaultSlotLayout().Labels()
	assert.Equal(t, "09:00", labels[0])
	assert.Equal(t, "16:00", labels[len(labels)-1])
	assert.NotContains(t, labels, "12:00")
	assert.NotContains(t, labels, "12:30")
}

func TestLabelsReturnsCopy(t *testing.T) {
	layout := DefaultSlotLayout()
	labels := layout.Labels()
	labels[0] = "00:00"
	assert.Equal(t, "09:00", layout.Labels()[0])
}
