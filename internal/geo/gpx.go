package geo

import (
	"encoding/xml"
	"fmt"
	"time"
)

// GPX is the track document posted to the routing endpoint.
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Track   GPXTrack `xml:"trk"`
}

type GPXTrack struct {
	Name    string          `xml:"name"`
	Segment GPXTrackSegment `xml:"trkseg"`
}

type GPXTrackSegment struct {
	Points []GPXPoint `xml:"trkpt"`
}

type GPXPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// TrackName is the name given to a driver track ending at lastTimeStamp.
func TrackName(lastTimeStamp int64) string {
	return fmt.Sprintf("Driver Segment Tracking %d", lastTimeStamp)
}

// NewTrack builds a GPX document from fixes, named after the final fix.
func NewTrack(fixes []Fix) (*GPX, error) {
	if len(fixes) == 0 {
		return nil, fmt.Errorf("cannot build a track without fixes")
	}
	points := make([]GPXPoint, len(fixes))
	for i, f := range fixes {
		points[i] = GPXPoint{
			Lat:  f.Latitude,
			Lon:  f.Longitude,
			Time: f.Time().Format(time.RFC3339Nano),
		}
	}
	return &GPX{
		Version: "1.1",
		Creator: "nayancam",
		Track: GPXTrack{
			Name:    TrackName(fixes[len(fixes)-1].TimeStamp),
			Segment: GPXTrackSegment{Points: points},
		},
	}, nil
}

// Marshal renders the document with an XML header.
func (g *GPX) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding gpx: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
