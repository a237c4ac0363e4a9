package drive

import (
	"path/filepath"
	"strings"
	"time"
)

// RecordingInfo is the metadata the capture app encodes in a video file name,
// e.g. "pol-1940-lat-22.5622697lon-75.7633486dt-11-03-22ti-08-47-54.mp4".
type RecordingInfo struct {
	Latitude   string
	Longitude  string
	RecordedOn time.Time // zero when the name carries no timestamp
}

// recordingLayout is "MM-dd-yy HH-mm-ss", interpreted as UTC.
const recordingLayout = "01-02-06 15-04-05"

// ParseRecordingName extracts the coordinates and recording time from a file
// name. Missing parts are left empty.
func ParseRecordingName(name string) RecordingInfo {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	info := RecordingInfo{
		Latitude:  between(stem, "lat-", "lon"),
		Longitude: between(stem, "lon-", "dt"),
	}

	date := between(stem, "dt-", "ti")
	clock := after(stem, "ti-")
	if date != "" && clock != "" {
		if t, err := time.ParseInLocation(recordingLayout, date+" "+clock, time.UTC); err == nil {
			info.RecordedOn = t
		}
	}
	return info
}

// between returns the text after the first start marker up to the next end
// marker, or "" when start is missing.
func between(s, start, end string) string {
	rest := after(s, start)
	if rest == "" {
		return ""
	}
	if i := strings.Index(rest, end); i >= 0 {
		return rest[:i]
	}
	return rest
}

func after(s, marker string) string {
	i := strings.Index(s, marker)
	if i < 0 {
		return ""
	}
	return s[i+len(marker):]
}
