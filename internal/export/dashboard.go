package export

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type exportDashboard struct {
	mu sync.Mutex

	workers map[int]string
	events  []string

	parsed   int
	skipped  int
	total    int
	workersN int
	started  time.Time

	stop chan struct{}
}

func newExportDashboard(workers, total int) *exportDashboard {
	return &exportDashboard{
		workers:  make(map[int]string),
		events:   make([]string, 0, 8),
		total:    total,
		workersN: workers,
		started:  time.Now(),
		stop:     make(chan struct{}),
	}
}

func (d *exportDashboard) Start() {
	go func() {
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-t.C:
				d.render()
			}
		}
	}()
}

func (d *exportDashboard) Stop() {
	close(d.stop)
	d.render()
}

func (d *exportDashboard) SetWorker(workerID int, path string) {
	d.mu.Lock()
	d.workers[workerID] = path
	d.mu.Unlock()
}

func (d *exportDashboard) FileDone(workerID int, path string, err error) {
	d.mu.Lock()
	delete(d.workers, workerID)
	if err != nil {
		d.skipped++
		d.events = append([]string{fmt.Sprintf("skip  %s (%v)", path, err)}, d.events...)
		if len(d.events) > 8 {
			d.events = d.events[:8]
		}
	} else {
		d.parsed++
	}
	d.mu.Unlock()
}

func (d *exportDashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int, 0, len(d.workers))
	for id := range d.workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	done := d.parsed + d.skipped
	elapsed := time.Since(d.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(done) / elapsed
	}
	etaPart := " | eta ~ calculating"
	if rate > 0 {
		remaining := float64(d.total-done) / rate
		if eta := formatETASeconds(remaining); eta != "" {
			etaPart = fmt.Sprintf(" | eta ~ %s", eta)
		} else {
			etaPart = ""
		}
	}

	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	b.WriteString(fmt.Sprintf("wu-obs-scraper export | active %d/%d | parsed %d/%d | skipped %d | %.1f files/s%s\n",
		len(ids), d.workersN, d.parsed, d.total, d.skipped, rate, etaPart))
	b.WriteString(strings.Repeat("-", 100) + "\n")

	if len(ids) == 0 {
		b.WriteString("(no active workers)\n")
	} else {
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("w%d %s\n", id, d.workers[id]))
		}
	}

	if len(d.events) > 0 {
		b.WriteString(strings.Repeat("-", 100) + "\n")
		for _, e := range d.events {
			b.WriteString(e + "\n")
		}
	}

	fmt.Print(b.String())
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if hours < 24 {
		if remMinutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, remMinutes)
	}
	days := hours / 24
	remHours := hours % 24
	if remHours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, remHours)
}
