package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// columnUnits maps known sounding column tokens to their units. Columns with
// a known unit are labeled "NAME,unit"; unknown columns stay bare.
var columnUnits = map[string]string{
	"PRES": "hPa",
	"HGHT": "m",
	"TEMP": "C",
	"DWPT": "C",
	"RELH": "%",
	"MIXR": "g/kg",
	"DRCT": "deg",
	"SKNT": "knot",
	"THTA": "K",
	"THTE": "K",
	"THTV": "K",
	"ABSH": "g/m3",
}

// ColumnUnits returns a copy of the column-token to unit table.
func ColumnUnits() map[string]string {
	out := make(map[string]string, len(columnUnits))
	for k, v := range columnUnits {
		out[k] = v
	}
	return out
}

// Cell is one parsed sounding value: a number, free text, or null.
// The zero value is null.
type Cell struct {
	Num  *float64
	Text string
}

// NumCell returns a numeric cell.
func NumCell(v float64) Cell {
	return Cell{Num: &v}
}

// TextCell returns a textual cell.
func TextCell(s string) Cell {
	return Cell{Text: s}
}

// IsNull reports whether the cell carries neither a number nor text.
func (c Cell) IsNull() bool {
	return c.Num == nil && c.Text == ""
}

// Float returns the numeric value and whether the cell is numeric.
func (c Cell) Float() (float64, bool) {
	if c.Num == nil {
		return 0, false
	}
	return *c.Num, true
}

// Render returns the cell as written in a delimited export: the shortest
// exact decimal form for numbers, the raw text otherwise, empty for null.
func (c Cell) Render() string {
	if c.Num != nil {
		return strconv.FormatFloat(*c.Num, 'f', -1, 64)
	}
	return c.Text
}

// SoundingPayload is the parsed form of one archive text dump.
type SoundingPayload struct {
	StationName string
	Columns     []string
	Rows        [][]Cell
	Units       map[string]string
	RawText     string
	RowCount    int
}

// Sounding is a stored vertical profile, keyed by (StationID, SoundingTime).
type Sounding struct {
	ID           string
	StationID    string
	SoundingTime time.Time
	StationName  string
	Columns      []string
	Rows         [][]Cell
	Units        map[string]string
	RawText      string
	RowCount     int
	FetchedAt    time.Time
}

// ParseSoundingText parses a raw archive text block into columns and rows.
//
// The header is the first non-empty line starting with "PRES"; subsequent
// non-empty lines are data rows when they have at least as many fields as the
// header and a numeric first field. A blank line after the header ends the
// block. When both RELH and TEMP are present a derived ABSH column is
// appended. A malformed or empty block yields empty columns and rows, not an
// error; callers treat zero rows as nothing to store.
func ParseSoundingText(text string) SoundingPayload {
	var (
		columns    []string
		rows       [][]Cell
		headerSeen bool
	)

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			if headerSeen {
				break
			}
			continue
		}
		if !headerSeen {
			if strings.HasPrefix(stripped, "PRES") {
				columns = strings.Fields(stripped)
				headerSeen = true
			}
			continue
		}

		parts := strings.Fields(stripped)
		if len(parts) < len(columns) {
			continue
		}
		if _, err := strconv.ParseFloat(parts[0], 64); err != nil {
			continue
		}
		row := make([]Cell, len(columns))
		for i := range columns {
			if v, err := strconv.ParseFloat(parts[i], 64); err == nil {
				row[i] = NumCell(v)
			} else {
				row[i] = TextCell(parts[i])
			}
		}
		rows = append(rows, row)
	}

	if containsColumn(columns, "RELH") && containsColumn(columns, "TEMP") {
		relhIdx := columnIndex(columns, "RELH")
		tempIdx := columnIndex(columns, "TEMP")
		columns = append(columns, "ABSH")
		for i, row := range rows {
			var absh Cell
			relh, okR := row[relhIdx].Float()
			temp, okT := row[tempIdx].Float()
			if okR && okT {
				if v := absoluteHumidity(relh, temp); v != nil {
					absh = NumCell(*v)
				}
			}
			rows[i] = append(row, absh)
		}
	}

	labeled := make([]string, len(columns))
	for i, base := range columns {
		if unit, ok := columnUnits[base]; ok {
			labeled[i] = base + "," + unit
		} else {
			labeled[i] = base
		}
	}

	return SoundingPayload{
		Columns:  labeled,
		Rows:     rows,
		Units:    ColumnUnits(),
		RawText:  text,
		RowCount: len(rows),
	}
}

// absoluteHumidity computes water vapor density in g/m3 from relative
// humidity (%) and temperature (C). Returns nil when the arithmetic
// degenerates instead of propagating Inf/NaN.
func absoluteHumidity(relh, tempC float64) *float64 {
	v := 6.112 * math.Exp(17.67*tempC/(tempC+243.5)) * relh * 2.1674 / (273.15 + tempC)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BaseColumnName strips the ",unit" suffix from a labeled column name.
func BaseColumnName(labeled string) string {
	base, _, _ := strings.Cut(labeled, ",")
	return strings.TrimSpace(base)
}

func containsColumn(columns []string, name string) bool {
	return columnIndex(columns, name) >= 0
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
