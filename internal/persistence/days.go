package persistence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeDays renders weekdays as a comma separated list of numbers, keeping
// the caller's order. SQL backends store schedules in this form.
func EncodeDays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(int(day))
	}
	return strings.Join(parts, ",")
}

// DecodeDays parses the output of EncodeDays.
func DecodeDays(value string) ([]time.Weekday, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < int(time.Sunday) || n > int(time.Saturday) {
			return nil, fmt.Errorf("invalid stored weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
