package uwyo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// FetchStations downloads the station list that was active at the given
// observation time. Entries without a station id are dropped.
func (c *Client) FetchStations(ctx context.Context, t time.Time) ([]domain.StationPayload, error) {
	params := url.Values{
		"datetime": {t.UTC().Format(timeParamLayout)},
	}

	body, status, err := c.get(ctx, c.stationsURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch stations: HTTP %d", status)
	}

	var parsed stationListResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("fetch stations: decode: %w", err)
	}

	payloads := make([]domain.StationPayload, 0, len(parsed.Stations))
	for _, s := range parsed.Stations {
		code := strings.TrimSpace(string(s.StationID))
		if code == "" {
			continue
		}
		payloads = append(payloads, domain.StationPayload{
			Code: code,
			Name: strings.TrimSpace(string(s.Name)),
			Lat:  s.Lat.value(),
			Lon:  s.Lon.value(),
			Src:  strings.TrimSpace(string(s.Src)),
		})
	}
	return payloads, nil
}

type stationListResponse struct {
	Stations []stationEntry `json:"stations"`
}

type stationEntry struct {
	StationID flexString `json:"stationid"`
	Name      flexString `json:"name"`
	Lat       flexFloat  `json:"lat"`
	Lon       flexFloat  `json:"lon"`
	Src       flexString `json:"src"`
}

// flexFloat accepts a JSON number, a numeric string, an empty string, or
// null. The archive's list mixes all of these.
type flexFloat struct {
	num *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		f.num = nil
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var quoted string
		if err := json.Unmarshal(data, &quoted); err != nil {
			return err
		}
		quoted = strings.TrimSpace(quoted)
		if quoted == "" {
			f.num = nil
			return nil
		}
		v, err := strconv.ParseFloat(quoted, 64)
		if err != nil {
			f.num = nil
			return nil
		}
		f.num = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.num = &v
	return nil
}

func (f flexFloat) value() *float64 {
	if f.num == nil {
		return nil
	}
	v := *f.num
	return &v
}

// flexString accepts a JSON string, a bare number, or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var quoted string
		if err := json.Unmarshal(data, &quoted); err != nil {
			return err
		}
		*f = flexString(quoted)
		return nil
	}
	*f = flexString(s)
	return nil
}
