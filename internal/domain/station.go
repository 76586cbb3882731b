package domain

import "time"

// Station is an upper-air observation site known to the archive.
// Code is the immutable external station identifier; the descriptive fields
// are refreshed from the upstream station list.
type Station struct {
	ID        string
	Code      string
	Name      string
	Lat       *float64
	Lon       *float64
	Src       string
	UpdatedAt time.Time
}

// Label returns the display name for filenames and headings, falling back to
// the external code.
func (s *Station) Label() string {
	if s == nil {
		return "station"
	}
	if s.Name != "" {
		return s.Name
	}
	if s.Code != "" {
		return s.Code
	}
	return "station"
}

// StationPayload is one entry parsed from the upstream station list.
// Blank or non-numeric lat/lon normalize to absent.
type StationPayload struct {
	Code string
	Name string
	Lat  *float64
	Lon  *float64
	Src  string
}
