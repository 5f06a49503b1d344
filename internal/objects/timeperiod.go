package objects

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"monitoring/internal/config"
)

const minutesPerDay = 24 * 60

// timeRange is a half-open [start,end) window in minutes from local midnight.
type timeRange struct {
	start int
	end   int
}

// Timeperiod is a weekly set of time ranges evaluated in one location.
// Params: name, location, and ranges per weekday.
// Returns: notifier.Timeperiod implementation.
type Timeperiod struct {
	name     string
	alias    string
	location *time.Location
	days     [7][]timeRange
}

// NewTimeperiod compiles one timeperiod definition.
// Params: period name and config with "HH:MM-HH:MM" ranges (24:00 allowed as end).
// Returns: compiled period or range/timezone error.
func NewTimeperiod(name string, cfg config.TimeperiodConfig) (*Timeperiod, error) {
	location := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timeperiod %q: timezone %q: %w", name, tz, err)
		}
		location = loaded
	}

	period := &Timeperiod{name: name, alias: cfg.Alias, location: location}
	for day, raw := range cfg.Days() {
		ranges := make([]timeRange, 0, len(raw))
		for _, value := range raw {
			r, err := parseTimeRange(value)
			if err != nil {
				return nil, fmt.Errorf("timeperiod %q: %s: %w", name, time.Weekday(day), err)
			}
			ranges = append(ranges, r)
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
		period.days[day] = ranges
	}
	return period, nil
}

// Name returns period name.
func (p *Timeperiod) Name() string { return p.name }

// Alias returns period alias.
func (p *Timeperiod) Alias() string { return p.alias }

// CheckTime reports whether t falls inside any range of its local weekday.
// Params: instant to test.
// Returns: true when t is inside the period.
func (p *Timeperiod) CheckTime(t time.Time) bool {
	local := t.In(p.location)
	minute := local.Hour()*60 + local.Minute()
	for _, r := range p.days[local.Weekday()] {
		if minute >= r.start && minute < r.end {
			return true
		}
	}
	return false
}

// NextValidTime returns the first instant at or after t inside the period.
// Params: start instant.
// Returns: t itself when valid, the next range start otherwise, or zero time when
// the period has no ranges at all.
func (p *Timeperiod) NextValidTime(t time.Time) time.Time {
	if p.CheckTime(t) {
		return t
	}
	local := t.In(p.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location)
	for offset := 0; offset <= 7; offset++ {
		day := midnight.AddDate(0, 0, offset)
		for _, r := range p.days[day.Weekday()] {
			candidate := day.Add(time.Duration(r.start) * time.Minute)
			if candidate.After(t) {
				return candidate
			}
		}
	}
	return time.Time{}
}

// parseTimeRange parses "HH:MM-HH:MM".
// Params: raw range value.
// Returns: range in minutes or format error.
func parseTimeRange(value string) (timeRange, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return timeRange{}, fmt.Errorf("range %q must be HH:MM-HH:MM", value)
	}
	start, err := parseClock(startRaw)
	if err != nil {
		return timeRange{}, fmt.Errorf("range %q: %w", value, err)
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return timeRange{}, fmt.Errorf("range %q: %w", value, err)
	}
	if start >= minutesPerDay {
		return timeRange{}, fmt.Errorf("range %q: start cannot be 24:00", value)
	}
	if end <= start {
		return timeRange{}, fmt.Errorf("range %q: end must be after start", value)
	}
	return timeRange{start: start, end: end}, nil
}

func parseClock(value string) (int, error) {
	hourRaw, minuteRaw, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("time %q must be HH:MM", value)
	}
	hour, err := strconv.Atoi(hourRaw)
	if err != nil {
		return 0, fmt.Errorf("time %q has invalid hour", value)
	}
	minute, err := strconv.Atoi(minuteRaw)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", value)
	}
	if hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time %q is out of range", value)
	}
	return hour*60 + minute, nil
}
