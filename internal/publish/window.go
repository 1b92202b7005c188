package publish

import (
	"fmt"
	"sort"
	"time"

	"TrendPress/internal/domain"
)

// NextSlot resolves the earliest workspace publish time that is at least
// the review window ahead of now, in the workspace timezone. Slots repeat
// daily, so a late approval rolls over to the next day's first slot.
func NextSlot(ws domain.Workspace, now time.Time) (time.Time, error) {
	if len(ws.PublishTimes) == 0 {
		return time.Time{}, &domain.Error{
			Kind: domain.KindConfig,
			Op:   "next publish slot",
			Err:  fmt.Errorf("workspace %s has no publish times", ws.ID),
		}
	}

	loc := ws.Location()
	local := now.In(loc)
	earliest := local.Add(ws.ReviewWindow())

	offsets, err := parseTimes(ws.PublishTimes)
	if err != nil {
		return time.Time{}, &domain.Error{Kind: domain.KindConfig, Op: "next publish slot", Err: err}
	}

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for d := 0; d < 366; d++ {
		for _, offset := range offsets {
			slot := day.Add(offset)
			if !slot.Before(earliest) {
				return slot, nil
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return time.Time{}, &domain.Error{
		Kind: domain.KindConfig,
		Op:   "next publish slot",
		Err:  fmt.Errorf("no eligible slot within a year for workspace %s", ws.ID),
	}
}

// NextDaySlot resolves the first publish time of the day after now, used
// when the daily quota defers a job.
func NextDaySlot(ws domain.Workspace, now time.Time) (time.Time, error) {
	if len(ws.PublishTimes) == 0 {
		return time.Time{}, &domain.Error{
			Kind: domain.KindConfig,
			Op:   "next day slot",
			Err:  fmt.Errorf("workspace %s has no publish times", ws.ID),
		}
	}

	offsets, err := parseTimes(ws.PublishTimes)
	if err != nil {
		return time.Time{}, &domain.Error{Kind: domain.KindConfig, Op: "next day slot", Err: err}
	}

	loc := ws.Location()
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return day.Add(offsets[0]), nil
}

func parseTimes(times []string) ([]time.Duration, error) {
	offsets := make([]time.Duration, 0, len(times))
	for _, raw := range times {
		parsed, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, fmt.Errorf("publish time %q: %w", raw, err)
		}
		offsets = append(offsets, time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}
