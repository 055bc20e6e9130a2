package slot

import "time"

// CalendarEntry は空き状況カレンダーの1日分
type CalendarEntry struct {
	Date          time.Time `json:"date"`
	TotalCapacity int       `json:"total_capacity"`
	ReservedCount int       `json:"reserved_count"`
	Remaining     int       `json:"remaining"`
}

// Stats はカレンダー範囲の集計結果
type Stats struct {
	PeakDemandDate     *time.Time
	AverageUtilization float64
	TotalReserved      int
	TotalCapacity      int
	Days               int
}

// BuildCalendar は start〜end の各日について1件ずつエントリを作る
// slots に存在しない日は defaultCapacity の空枠として埋める
func BuildCalendar(start, end time.Time, slots []*Slot, defaultCapacity int) []CalendarEntry {
	byDate := make(map[time.Time]*Slot, len(slots))
	for _, s := range slots {
		byDate[NormalizeDate(s.Date)] = s
	}

	from, to := NormalizeDate(start), NormalizeDate(end)
	entries := make([]CalendarEntry, 0, Days(from, to))
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		s, ok := byDate[d]
		if !ok {
			s = &Slot{Date: d, TotalCapacity: defaultCapacity}
		}
		entries = append(entries, CalendarEntry{
			Date:          d,
			TotalCapacity: s.TotalCapacity,
			ReservedCount: s.ReservedCount,
			Remaining:     s.Remaining(),
		})
	}
	return entries
}

// Summarize はカレンダーエントリを集計する
// ピーク日は予約数最大の日（同数なら早い日）。予約が1件もなければ nil
func Summarize(entries []CalendarEntry) Stats {
	stats := Stats{Days: len(entries)}

	var (
		utilSum  float64
		utilDays int
		peak     = -1
	)
	for i, e := range entries {
		stats.TotalReserved += e.ReservedCount
		stats.TotalCapacity += e.TotalCapacity
		if e.TotalCapacity > 0 {
			utilSum += float64(e.ReservedCount) / float64(e.TotalCapacity)
			utilDays++
		}
		if e.ReservedCount > 0 && (peak < 0 || e.ReservedCount > entries[peak].ReservedCount) {
			peak = i
		}
	}

	if utilDays > 0 {
		stats.AverageUtilization = utilSum / float64(utilDays)
	}
	if peak >= 0 {
		d := entries[peak].Date
		stats.PeakDemandDate = &d
	}
	return stats
}
