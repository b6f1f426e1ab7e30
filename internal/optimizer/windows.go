package optimizer

import (
	"time"

	"WyckoffBacktester/internal/model"
)

// Kind is a calendar window granularity.
type Kind string

const (
	Monthly   Kind = "monthly"
	Quarterly Kind = "quarterly"
	Yearly    Kind = "yearly"
)

// Kinds lists the window granularities in report order.
var Kinds = []Kind{Monthly, Quarterly, Yearly}

// Window is a calendar period clamped to the data, covering bars[From:To].
type Window struct {
	Kind  Kind
	Start time.Time
	End   time.Time
	From  int
	To    int
}

// Len is the number of bars in the window.
func (w Window) Len() int { return w.To - w.From }

func (k Kind) bounds(t time.Time) (start, next time.Time) {
	y, m, _ := t.Date()
	loc := t.Location()
	switch k {
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case Quarterly:
		start = time.Date(y, time.Month((int(m)-1)/3*3+1), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0)
	default:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
}

// Windows splits ascending bars into calendar windows of kind. Periods without bars are absent.
func Windows(bars []model.OHLCV, kind Kind) []Window {
	if len(bars) == 0 {
		return nil
	}
	first, last := bars[0].Time, bars[len(bars)-1].Time

	var out []Window
	for i := 0; i < len(bars); {
		start, next := kind.bounds(bars[i].Time)
		j := i + 1
		for j < len(bars) && bars[j].Time.Before(next) {
			j++
		}
		w := Window{Kind: kind, Start: start, End: next.AddDate(0, 0, -1), From: i, To: j}
		if w.Start.Before(first) {
			w.Start = first
		}
		if w.End.After(last) {
			w.End = last
		}
		out = append(out, w)
		i = j
	}
	return out
}

// mostRecent keeps the last n windows; n <= 0 keeps all.
func mostRecent(ws []Window, n int) []Window {
	if n <= 0 || len(ws) <= n {
		return ws
	}
	return ws[len(ws)-n:]
}
