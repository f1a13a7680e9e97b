package model

import "fmt"

const (
	KindFeatures   = "features"
	KindDaily      = "daily"
	KindHistorical = "historical"
)

// WorkUnit is one fetchable quantity of scrape work. Each unit maps to
// exactly one cache file; distinct units never share a path.
type WorkUnit interface {
	Kind() string
	// UnitID is the stable identifier used in progress lines and failure
	// reports.
	UnitID() string
	// GroupID names the station whose completion marker covers this unit,
	// or "" for ungrouped units.
	GroupID() string
}

// TileUnit addresses one Web Mercator tile for station discovery.
type TileUnit struct {
	X    int
	Y    int
	Zoom int
}

func (u TileUnit) Kind() string    { return KindFeatures }
func (u TileUnit) UnitID() string  { return fmt.Sprintf("tile %d,%d zoom %d", u.X, u.Y, u.Zoom) }
func (u TileUnit) GroupID() string { return "" }

// StationMonthUnit addresses one month of daily observations for one
// personal weather station.
type StationMonthUnit struct {
	StationID string
	Year      int
	Month     int
}

func (u StationMonthUnit) Kind() string { return KindDaily }

func (u StationMonthUnit) UnitID() string {
	return fmt.Sprintf("%s %04d-%02d", u.StationID, u.Year, u.Month)
}

func (u StationMonthUnit) GroupID() string { return u.StationID }

// StationDayUnit addresses one day of hourly observations for one
// NWS-operated station.
type StationDayUnit struct {
	StationID string
	Year      int
	Month     int
	Day       int
}

func (u StationDayUnit) Kind() string { return KindHistorical }

func (u StationDayUnit) UnitID() string {
	return fmt.Sprintf("%s %04d-%02d-%02d", u.StationID, u.Year, u.Month, u.Day)
}

func (u StationDayUnit) GroupID() string { return u.StationID }

// UnitFailure records one terminally failed unit for the end-of-run report.
type UnitFailure struct {
	UnitID string `json:"unit_id"`
	Reason string `json:"reason"`
}

func IsKnownKind(kind string) bool {
	switch kind {
	case KindFeatures, KindDaily, KindHistorical:
		return true
	}
	return false
}
