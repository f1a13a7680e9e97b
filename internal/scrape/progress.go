package scrape

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"wu-obs-scraper/internal/model"
)

// Progress renders a single refreshing status line for one scrape run. Wire
// its Observe method into RunOptions.Observer.
type Progress struct {
	enabled bool
	kind    string

	mu      sync.Mutex
	group   string
	unitID  string
	phase   string
	done    int
	total   int
	fetched int
	skipped int
	failed  int

	stop chan struct{}
}

func NewProgress(enabled bool, kind string) *Progress {
	return &Progress{
		enabled: enabled,
		kind:    kind,
		phase:   "starting",
		stop:    make(chan struct{}),
	}
}

func (p *Progress) Start() {
	if !p.enabled {
		return
	}
	go func() {
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Printf("\r\033[2K%s", p.render())
			}
		}
	}()
}

func (p *Progress) Stop(final string) {
	if !p.enabled {
		return
	}
	close(p.stop)
	fmt.Printf("\r\033[2K%s\n", final)
}

func (p *Progress) Observe(ev Event) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = ev.Done
	p.total = ev.Total
	p.group = ev.Group
	p.phase = ev.Status
	if ev.Unit != nil {
		p.unitID = ev.Unit.UnitID()
	} else {
		p.unitID = ""
	}
	if ev.Units == 0 {
		return
	}
	switch ev.Status {
	case model.StatusFetched:
		p.fetched += ev.Units
	case model.StatusCached:
		p.skipped += ev.Units
	case model.StatusFailed:
		p.failed += ev.Units
	}
}

func (p *Progress) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	parts := []string{fmt.Sprintf("[%d/%d] %s", p.done, p.total, p.kind), p.phase}
	if p.unitID != "" {
		parts = append(parts, p.unitID)
	}
	parts = append(parts, fmt.Sprintf("fetched:%d cached:%d failed:%d", p.fetched, p.skipped, p.failed))
	if p.group != "" {
		parts = append(parts, "| "+p.group)
	}
	return strings.Join(parts, "  ")
}
