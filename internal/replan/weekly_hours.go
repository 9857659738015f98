package replan

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// WeeklyHours maps a weekday to the study hours budgeted for it.
type WeeklyHours map[time.Weekday]float64

// DefaultWeeklyHours is the map substituted for a missing or malformed
// configuration: Sunday off, four hours Monday through Saturday.
func DefaultWeeklyHours() WeeklyHours {
	return WeeklyHours{
		time.Sunday:    0,
		time.Monday:    4,
		time.Tuesday:   4,
		time.Wednesday: 4,
		time.Thursday:  4,
		time.Friday:    4,
		time.Saturday:  4,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeeklyHours decodes a stored weekly-hours document. Keys may be weekday
// indexes ("0" is Sunday) or English weekday names; values may be numbers or
// numeric strings. The boolean is false when the default map was substituted.
func ParseWeeklyHours(raw []byte) (WeeklyHours, bool) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return DefaultWeeklyHours(), false
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc) == 0 {
		return DefaultWeeklyHours(), false
	}

	hours := make(WeeklyHours, 7)
	for key, value := range doc {
		day, ok := parseWeekday(key)
		if !ok {
			continue
		}
		hours[day] = parseHours(value)
	}
	if len(hours) == 0 {
		return DefaultWeeklyHours(), false
	}
	return hours, true
}

func parseWeekday(key string) (time.Weekday, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if idx, err := strconv.Atoi(key); err == nil {
		if idx < 0 || idx > 6 {
			return 0, false
		}
		return time.Weekday(idx), true
	}
	day, ok := weekdayNames[key]
	return day, ok
}

func parseHours(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
