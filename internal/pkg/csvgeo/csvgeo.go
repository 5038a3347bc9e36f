// Package csvgeo reads task pins and recorded position tracks from CSV.
//
// Pins are "title,lat,lng". Tracks are "lat,lng[,accuracy_m[,offset_ms]]".
// A first row whose coordinate columns do not parse as numbers is treated as
// a header and skipped.
package csvgeo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// Pin is one task to import.
type Pin struct {
	Title    string
	Location domain.GeoPoint
}

// TrackPoint is one recorded reading. Offset is relative to the first point;
// zero means "use the replay interval".
type TrackPoint struct {
	Location  domain.GeoPoint
	AccuracyM float64
	Offset    time.Duration
}

// ReadPins parses pin rows. Rows with an empty title or bad coordinates are
// rejected with their line number.
func ReadPins(r io.Reader) ([]Pin, error) {
	cr := newReader(r, 3)

	var pins []Pin
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		pt, perr := parsePoint(rec[1], rec[2])
		if perr != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, perr)
		}
		title := strings.TrimSpace(rec[0])
		if title == "" {
			return nil, fmt.Errorf("line %d: empty title", line)
		}
		pins = append(pins, Pin{Title: title, Location: pt})
	}
	return pins, nil
}

// ReadTrack parses track rows.
func ReadTrack(r io.Reader) ([]TrackPoint, error) {
	cr := newReader(r, -1)

	var track []TrackPoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want at least lat,lng", line)
		}

		pt, perr := parsePoint(rec[0], rec[1])
		if perr != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, perr)
		}
		tp := TrackPoint{Location: pt}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			if tp.AccuracyM, err = strconv.ParseFloat(strings.TrimSpace(rec[2]), 64); err != nil {
				return nil, fmt.Errorf("line %d: accuracy: %w", line, err)
			}
		}
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			ms, err := strconv.ParseInt(strings.TrimSpace(rec[3]), 10, 64)
			if err != nil || ms < 0 {
				return nil, fmt.Errorf("line %d: bad offset_ms %q", line, rec[3])
			}
			tp.Offset = time.Duration(ms) * time.Millisecond
		}
		track = append(track, tp)
	}
	return track, nil
}

func newReader(r io.Reader, fields int) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr
}

func parsePoint(latStr, lngStr string) (domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("lng: %w", err)
	}
	pt := domain.GeoPoint{Lat: lat, Lon: lng}
	if !pt.Valid() {
		return domain.GeoPoint{}, fmt.Errorf("coordinates %s out of range", pt)
	}
	return pt, nil
}
