package appointment

import (
	"fmt"
	"time"

	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
)

type slotOffset struct {
	hour, minute int
}

// SlotLayout is the fixed set of time-of-day labels that make up one day of
// the availability grid, each slot Width long.
type SlotLayout struct {
	labels  []string
	offsets []slotOffset
	width   time.Duration
}

func NewSlotLayout(labels []string, width time.Duration) (SlotLayout, error) {
	if len(labels) == 0 {
		return SlotLayout{}, fmt.Errorf("slot layout: at least one label required")
	}
	if width <= 0 {
		return SlotLayout{}, fmt.Errorf("slot layout: width must be positive, got %s", width)
	}

	layout := SlotLayout{
		labels:  make([]string, 0, len(labels)),
		offsets: make([]slotOffset, 0, len(labels)),
		width:   width,
	}
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		t, err := time.Parse("15:04", label)
		if err != nil {
			return SlotLayout{}, fmt.Errorf("slot layout: invalid label %q", label)
		}
		if seen[label] {
			return SlotLayout{}, fmt.Errorf("slot layout: duplicate label %q", label)
		}
		seen[label] = true
		layout.labels = append(layout.labels, label)
		layout.offsets = append(layout.offsets, slotOffset{hour: t.Hour(), minute: t.Minute()})
	}
	return layout, nil
}

// DefaultSlotLayout is the reference grid: config.DefaultSlotLabels, 30 minutes each.
func DefaultSlotLayout() SlotLayout {
	layout, err := NewSlotLayout(config.DefaultSlotLabels, 30*time.Minute)
	if err != nil {
		panic(err)
	}
	return layout
}

func (l SlotLayout) Labels() []string {
	out := make([]string, len(l.labels))
	copy(out, l.labels)
	return out
}

func (l SlotLayout) Width() time.Duration {
	return l.width
}

// rangeOn returns slot i on the calendar day of date, in date's location.
func (l SlotLayout) rangeOn(date time.Time, i int) (time.Time, time.Time) {
	off := l.offsets[i]
	start := time.Date(date.Year(), date.Month(), date.Day(), off.hour, off.minute, 0, 0, date.Location())
	return start, start.Add(l.width)
}

func (l SlotLayout) emptyDay() []AvailabilitySlot {
	slots := make([]AvailabilitySlot, len(l.labels))
	for i, label := range l.labels {
		slots[i] = AvailabilitySlot{Time: label}
	}
	return slots
}
