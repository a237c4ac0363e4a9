package sensor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadEvents parses recorded events in CSV form:
//
//	timestamp_ns,kind,x,y,z
//
// A leading header row and blank lines are skipped.
func ReadEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var events []Event
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading events: %w", err)
		}
		if line == 1 && strings.EqualFold(rec[0], "timestamp_ns") {
			continue
		}

		ev, err := parseEvent(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
}

func parseEvent(rec []string) (Event, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	kind, err := ParseKind(rec[1])
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: kind, Timestamp: ts}
	for i := range ev.Values {
		v, err := strconv.ParseFloat(rec[2+i], 64)
		if err != nil {
			return Event{}, fmt.Errorf("parsing value %d: %w", i, err)
		}
		ev.Values[i] = v
	}
	return ev, nil
}
