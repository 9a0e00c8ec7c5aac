// Package transit turns raw per-stop departures into one ranked list of the
// next departure per line and destination.
package transit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/clock"
)

const (
	// PlaceholderDelta marks a configured line without a known departure.
	PlaceholderDelta = 9999
	placeholderText  = "--"

	noName        = "No Name"
	noDestination = "No Destination"

	windowMax = 59
)

type Stop struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// Lines, when set, restricts this stop to the named lines.
	Lines []string `json:"lines,omitempty"`
	// Raw departures, when present, are used instead of fetching the stop.
	Raw []RawDeparture `json:"raw,omitempty"`
}

type Departure struct {
	Line          string `json:"line"`
	Destination   string `json:"destination"`
	DeltaMinutes  int    `json:"departure_delta"`
	DisplayString string `json:"departure_str"`
}

type Normalizer struct {
	fetcher  Fetcher
	clock    clock.Clock
	duration int
	logger   *log.Entry
}

func NewNormalizer(fetcher Fetcher, clk clock.Clock, duration int) *Normalizer {
	if duration <= 0 {
		duration = 10
	}
	return &Normalizer{
		fetcher:  fetcher,
		clock:    clk,
		duration: duration,
		logger:   log.WithField("module", "transit"),
	}
}

type groupKey struct {
	line, destination string
}

// grouping keeps the soonest departure per (line, destination) in first seen
// order.
type grouping struct {
	order   []groupKey
	entries map[groupKey]Departure
}

func newGrouping() *grouping {
	return &grouping{entries: make(map[groupKey]Departure)}
}

func (g *grouping) offer(d Departure) {
	k := groupKey{d.Line, d.Destination}
	prev, ok := g.entries[k]
	if !ok {
		g.order = append(g.order, k)
		g.entries[k] = d
		return
	}
	if d.DeltaMinutes < prev.DeltaMinutes {
		g.entries[k] = d
	}
}

func (g *grouping) hasLine(line string) bool {
	for _, k := range g.order {
		if k.line == line {
			return true
		}
	}
	return false
}

func (g *grouping) list() []Departure {
	out := make([]Departure, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.entries[k])
	}
	return out
}

// GetAllDepartures fetches every stop, keeps the soonest departure per line
// and destination across all stops, and returns the ones leaving within the
// next hour sorted by delta. Upstream failures only drop the affected stop.
func (n *Normalizer) GetAllDepartures(ctx context.Context, stops []Stop, userLines []string) ([]Departure, error) {
	now := n.clock.Now()
	g := newGrouping()

	if len(stops) == 0 {
		n.logger.Infof("no stops configured")
	}

	for _, stop := range stops {
		if stop.ID == "" {
			n.logger.Warnf("stop id missing for %q", stop.Name)
			continue
		}

		raw := stop.Raw
		if raw == nil {
			var err error
			raw, err = n.fetcher.Departures(ctx, stop.ID, now, n.duration)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				n.logger.Warnf("fetch departures for stop %s: %v", stop.ID, err)
				continue
			}
		}

		for _, rd := range raw {
			if !lineAllowed(rd, userLines) || !lineAllowed(rd, stop.Lines) {
				continue
			}
			d, ok := n.entry(rd, now)
			if !ok {
				continue
			}
			g.offer(d)
		}
	}

	for _, ul := range userLines {
		if !g.hasLine(ul) {
			g.offer(Departure{
				Line:          ul,
				DeltaMinutes:  PlaceholderDelta,
				DisplayString: placeholderText,
			})
		}
	}

	return window(g.list()), nil
}

func lineName(rd RawDeparture) string {
	if rd.Line != nil && rd.Line.Name != "" {
		return rd.Line.Name
	}
	return noName
}

func lineAllowed(rd RawDeparture, userLines []string) bool {
	if len(userLines) == 0 {
		return true
	}
	name := lineName(rd)
	for _, ul := range userLines {
		if ul == name || (rd.Line != nil && rd.Line.ID != "" && ul == rd.Line.ID) {
			return true
		}
	}
	return false
}

func (n *Normalizer) entry(rd RawDeparture, now time.Time) (Departure, bool) {
	raw := rd.When
	if raw == "" {
		// cancelled or unknown realtime data
		raw = rd.PlannedWhen
	}
	when, ok := clock.ParseTime(raw, now.Location())
	if !ok {
		n.logger.Warnf("could not parse departure time %q", raw)
		return Departure{}, false
	}

	delta := clock.DeltaFromNow(when, now)
	total := delta.TotalMinutes()
	if total < 0 {
		return Departure{}, false
	}

	destination := noDestination
	if rd.Destination != nil && rd.Destination.Name != "" {
		destination = rd.Destination.Name
	}

	return Departure{
		Line:          lineName(rd),
		Destination:   destination,
		DeltaMinutes:  total,
		DisplayString: display(delta),
	}, true
}

func display(d clock.Delta) string {
	if d.Hours == 0 {
		return fmt.Sprintf("%d min", d.Minutes)
	}
	return fmt.Sprintf("%dh %d min", d.Hours, d.Minutes)
}

// window keeps departures with 0 < delta <= 59, placeholders included in the
// drop, and sorts them ascending.
func window(in []Departure) []Departure {
	out := make([]Departure, 0, len(in))
	for _, d := range in {
		if d.DeltaMinutes > 0 && d.DeltaMinutes <= windowMax {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeltaMinutes < out[j].DeltaMinutes
	})
	return out
}
