package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/wuapi"
)

type RunOptions struct {
	Client   *wuapi.Client
	Dir      string
	Kind     string
	Stations []string
	Zooms    []int
	// Tiles limits discovery to an explicit tile list; nil sweeps the full
	// grid at each zoom level.
	Tiles     []model.TileUnit
	Start     time.Time
	End       time.Time
	Overwrite bool
	Observer  Observer
}

type RunResult struct {
	Kind           string
	Total          int
	Fetched        int
	Skipped        int
	Failed         int
	MarkedComplete int
	Failures       []model.UnitFailure
}

// Observer receives one event per processed unit. Station-level marker skips
// arrive as a single event with a nil Unit covering the whole station.
type Observer func(Event)

type Event struct {
	Unit   model.WorkUnit
	Group  string
	Status string
	Reason string
	// Units is the number of work units this event accounts for: zero while
	// a fetch is in flight, one per settled unit, or the station's full unit
	// count on a marker skip.
	Units int
	Done  int
	Total int
}

// groupPlan defers unit materialization so full-grid sweeps never hold more
// than one zoom level in memory.
type groupPlan struct {
	station string
	count   int
	build   func() []model.WorkUnit
}

// Run drives one scrape: enumerate work units, skip cached ones, fetch and
// persist the rest, and mark stations complete once their whole range is
// cached. The scrape path is deliberately single-threaded; per-unit terminal
// failures are recorded and the run continues.
func Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return RunResult{}, fmt.Errorf("scrape directory not specified")
	}
	if opts.Client == nil {
		return RunResult{}, fmt.Errorf("fetch client not configured")
	}
	if !model.IsKnownKind(opts.Kind) {
		return RunResult{}, fmt.Errorf("unknown scrape kind %q", opts.Kind)
	}
	if err := cachestore.Mkdir(dir); err != nil {
		return RunResult{}, err
	}

	plans, total, err := buildPlans(opts)
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{Kind: opts.Kind, Total: total}
	done := 0
	emit := func(ev Event) {
		if opts.Observer == nil {
			return
		}
		ev.Done = done
		ev.Total = total
		opts.Observer(ev)
	}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		if plan.station != "" && !opts.Overwrite && cachestore.IsGroupComplete(dir, opts.Kind, plan.station) {
			res.Skipped += plan.count
			res.MarkedComplete++
			done += plan.count
			emit(Event{Group: plan.station, Status: model.StatusCached, Units: plan.count})
			continue
		}
		// An overwrite run invalidates the marker up front so an interrupted
		// refetch never leaves a stale completeness claim behind.
		if plan.station != "" && opts.Overwrite {
			if err := cachestore.ClearGroupComplete(dir, opts.Kind, plan.station); err != nil {
				return RunResult{}, err
			}
		}

		units := plan.build()
		for _, unit := range units {
			if err := ctx.Err(); err != nil {
				return RunResult{}, err
			}

			rec := model.UnitRecord{Unit: unit}
			if err := model.TransitionUnitStatus(&rec, model.StatusPending, ""); err != nil {
				return RunResult{}, err
			}

			if !opts.Overwrite && cachestore.Exists(dir, unit) {
				if err := model.TransitionUnitStatus(&rec, model.StatusCached, ""); err != nil {
					return RunResult{}, err
				}
				res.Skipped++
				done++
				emit(Event{Unit: unit, Group: plan.station, Status: rec.Status, Units: 1})
				continue
			}

			if err := model.TransitionUnitStatus(&rec, model.StatusFetching, ""); err != nil {
				return RunResult{}, err
			}
			emit(Event{Unit: unit, Group: plan.station, Status: rec.Status})

			body, fetchErr := opts.Client.FetchUnit(ctx, unit)
			if fetchErr != nil {
				if errors.Is(fetchErr, wuapi.ErrAuth) {
					return RunResult{}, fmt.Errorf("aborting run: %w", fetchErr)
				}
				if err := ctx.Err(); err != nil {
					return RunResult{}, err
				}
				if err := model.TransitionUnitStatus(&rec, model.StatusFailed, failureReason(fetchErr)); err != nil {
					return RunResult{}, err
				}
				res.Failed++
				done++
				res.Failures = append(res.Failures, model.UnitFailure{
					UnitID: unit.UnitID(),
					Reason: truncateReason(fetchErr.Error()),
				})
				emit(Event{Unit: unit, Group: plan.station, Status: rec.Status, Reason: rec.Reason, Units: 1})
				continue
			}

			if err := cachestore.Write(dir, unit, body); err != nil {
				return RunResult{}, err
			}
			if err := model.TransitionUnitStatus(&rec, model.StatusFetched, ""); err != nil {
				return RunResult{}, err
			}
			res.Fetched++
			done++
			emit(Event{Unit: unit, Group: plan.station, Status: rec.Status, Units: 1})
		}

		if plan.station == "" {
			continue
		}
		if !groupComplete(dir, units) {
			continue
		}
		if err := cachestore.MarkGroupComplete(dir, opts.Kind, plan.station); err != nil {
			return RunResult{}, err
		}
		res.MarkedComplete++
	}

	return res, nil
}

func buildPlans(opts RunOptions) ([]groupPlan, int, error) {
	switch opts.Kind {
	case model.KindFeatures:
		return buildTilePlans(opts)
	case model.KindDaily, model.KindHistorical:
		return buildStationPlans(opts)
	default:
		return nil, 0, fmt.Errorf("unknown scrape kind %q", opts.Kind)
	}
}

func buildTilePlans(opts RunOptions) ([]groupPlan, int, error) {
	zooms, err := NormalizeZooms(opts.Zooms)
	if err != nil {
		return nil, 0, err
	}

	plans := make([]groupPlan, 0, len(zooms))
	total := 0
	for _, zoom := range zooms {
		if opts.Tiles != nil {
			units := FilterTiles(opts.Tiles, zoom)
			plans = append(plans, groupPlan{
				count: len(units),
				build: func() []model.WorkUnit { return asWorkUnits(units) },
			})
			total += len(units)
			continue
		}
		n := 1 << zoom
		plans = append(plans, groupPlan{
			count: n * n,
			build: func() []model.WorkUnit { return asWorkUnits(SweepTiles(zoom)) },
		})
		total += n * n
	}
	return plans, total, nil
}

func buildStationPlans(opts RunOptions) ([]groupPlan, int, error) {
	stations := NormalizeStations(opts.Stations)
	if len(stations) == 0 {
		return nil, 0, fmt.Errorf("no stations specified")
	}

	start := opts.Start
	if start.IsZero() {
		start = DefaultStart
	}
	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if end.Before(start) {
		return nil, 0, fmt.Errorf("end date %s is before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	plans := make([]groupPlan, 0, len(stations))
	total := 0
	for _, station := range stations {
		var count int
		var build func() []model.WorkUnit
		if opts.Kind == model.KindDaily {
			count = len(MonthUnits(station, start, end))
			build = func() []model.WorkUnit { return asWorkUnits(MonthUnits(station, start, end)) }
		} else {
			count = len(DayUnits(station, start, end))
			build = func() []model.WorkUnit { return asWorkUnits(DayUnits(station, start, end)) }
		}
		plans = append(plans, groupPlan{station: station, count: count, build: build})
		total += count
	}
	return plans, total, nil
}

func asWorkUnits[T model.WorkUnit](units []T) []model.WorkUnit {
	out := make([]model.WorkUnit, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}

// groupComplete verifies that every unit in the station's requested range has
// a cache entry before the completion marker is written.
func groupComplete(dir string, units []model.WorkUnit) bool {
	for _, unit := range units {
		if !cachestore.Exists(dir, unit) {
			return false
		}
	}
	return true
}

func failureReason(err error) string {
	if errors.Is(err, wuapi.ErrNoObservations) {
		return "no_observations"
	}
	return "fetch_error"
}

func truncateReason(s string) string {
	if len(s) <= 500 {
		return s
	}
	return s[:500]
}
