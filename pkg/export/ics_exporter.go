package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is an all-day entry in an exported calendar.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Date        time.Time
}

// ICSExporter renders all-day events as an iCalendar document.
type ICSExporter struct {
	productID string
	now       func() time.Time
}

// NewICSExporter constructs an ICS exporter stamping events with productID.
func NewICSExporter(productID string) *ICSExporter {
	return &ICSExporter{productID: productID, now: time.Now}
}

// Render produces a PUBLISH calendar containing one event per entry.
func (e *ICSExporter) Render(name string, events []CalendarEvent) ([]byte, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("ics requires at least one event")
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	if e.productID != "" {
		cal.SetProductId(e.productID)
	}
	if name != "" {
		cal.SetName(name)
	}

	stamp := e.now().UTC()
	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("ics event requires a uid")
		}
		event := cal.AddEvent(ev.UID)
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(ev.Date)
		event.SetAllDayEndAt(ev.Date.AddDate(0, 0, 1))
		event.SetSummary(ev.Summary)
		if ev.Description != "" {
			event.SetDescription(ev.Description)
		}
	}
	return []byte(cal.Serialize()), nil
}
