package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nayancam/internal/drive"
)

// ReadLocations parses exported fixes in CSV form:
//
//	timestamp_ms,latitude,longitude,accuracy
//
// The accuracy column is optional. A leading header row is skipped.
func ReadLocations(r io.Reader) ([]drive.Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var locs []drive.Location
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return locs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading locations: %w", err)
		}
		if line == 1 && strings.HasPrefix(strings.ToLower(rec[0]), "timestamp") {
			continue
		}
		if len(rec) != 3 && len(rec) != 4 {
			return nil, fmt.Errorf("line %d: want 3 or 4 fields, got %d", line, len(rec))
		}

		loc, err := parseLocation(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		locs = append(locs, loc)
	}
}

func parseLocation(rec []string) (drive.Location, error) {
	var loc drive.Location
	var err error
	if loc.TimeStamp, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return loc, fmt.Errorf("timestamp: %w", err)
	}
	if loc.Latitude, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return loc, fmt.Errorf("latitude: %w", err)
	}
	if loc.Longitude, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return loc, fmt.Errorf("longitude: %w", err)
	}
	if len(rec) == 4 && rec[3] != "" {
		if loc.Accuracy, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return loc, fmt.Errorf("accuracy: %w", err)
		}
	}
	return loc, nil
}
