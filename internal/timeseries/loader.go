package timeseries

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dredgeapp/dredge/pkg/core"
)

// ErrInvalidNumber is wrapped by ParseError for a non-numeric coordinate or error-ellipse cell
var ErrInvalidNumber = errors.New("invalid number")

// TrackFields names the USBL columns.
type TrackFields struct {
	Time     string `json:"timeField" mapstructure:"timeField" validate:"required"`
	Lon      string `json:"lonField" mapstructure:"lonField" validate:"required"`
	Lat      string `json:"latField" mapstructure:"latField" validate:"required"`
	Beacon   string `json:"beaconField" mapstructure:"beaconField"`
	ErrMajor string `json:"errMajorField" mapstructure:"errMajorField"`
	ErrMinor string `json:"errMinorField" mapstructure:"errMinorField"`
}

// DefaultTrackFields matches the USBL export column names.
func DefaultTrackFields() TrackFields {
	return TrackFields{
		Time:     "datetime",
		Lon:      "longitude_deg",
		Lat:      "latitude_deg",
		Beacon:   "beacon_name",
		ErrMajor: "hor_err_major",
		ErrMinor: "hor_err_minor",
	}
}

// SensorFields names the sensor timestamp column and comment prefix.
type SensorFields struct {
	Time          string `json:"timeField" mapstructure:"timeField" validate:"required"`
	CommentPrefix string `json:"commentPrefix" mapstructure:"commentPrefix"`
}

// DefaultSensorFields matches the sensor logger export.
func DefaultSensorFields() SensorFields {
	return SensorFields{Time: "datetime", CommentPrefix: DefaultCommentPrefix}
}

// columns the projection derives; a stale copy in the input is not passed through
var derivedColumns = map[string]bool{"easting": true, "northing": true}

// parseNumber reads a numeric cell; blanks and NaN spellings are missing values.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null", "none":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// LoadTrack converts a raw table into a position track. Timestamps are required;
// coordinate columns are optional here and reported by projection when absent.
func LoadTrack(tbl *Table, fields TrackFields) (*core.Track, error) {
	times, err := Normalize(tbl, fields.Time)
	if err != nil {
		return nil, err
	}

	lonCol, latCol := tbl.Index(fields.Lon), tbl.Index(fields.Lat)
	beaconCol := indexIfSet(tbl, fields.Beacon)
	majCol, minCol := indexIfSet(tbl, fields.ErrMajor), indexIfSet(tbl, fields.ErrMinor)

	track := &core.Track{
		Source:          tbl.Source,
		HasCoordinates:  lonCol >= 0 && latCol >= 0,
		HasBeacon:       beaconCol >= 0,
		HasErrorEllipse: majCol >= 0 && minCol >= 0,
		SkippedLines:    tbl.SkippedLines,
		Records:         make([]core.Position, len(tbl.Rows)),
	}

	track.TimeField = fields.Time
	var keepCols []int
	for i, h := range tbl.Header {
		if derivedColumns[strings.ToLower(h)] {
			continue
		}
		keepCols = append(keepCols, i)
		track.Header = append(track.Header, h)
	}

	number := func(row, col int, field string) (float64, error) {
		if col < 0 {
			return math.NaN(), nil
		}
		raw := tbl.Cell(row, col)
		v, ok := parseNumber(raw)
		if !ok {
			return 0, &ParseError{Source: tbl.Source, Row: row + 1, Field: field, Value: raw, Err: ErrInvalidNumber}
		}
		return v, nil
	}

	for i := range tbl.Rows {
		rec := core.Position{Time: times[i]}
		if rec.Longitude, err = number(i, lonCol, fields.Lon); err != nil {
			return nil, err
		}
		if rec.Latitude, err = number(i, latCol, fields.Lat); err != nil {
			return nil, err
		}
		if rec.HorErrMajor, err = number(i, majCol, fields.ErrMajor); err != nil {
			return nil, err
		}
		if rec.HorErrMinor, err = number(i, minCol, fields.ErrMinor); err != nil {
			return nil, err
		}
		if beaconCol >= 0 {
			rec.Beacon = strings.TrimSpace(tbl.Cell(i, beaconCol))
		}
		rec.Cells = make([]string, len(keepCols))
		for j, c := range keepCols {
			rec.Cells[j] = tbl.Cell(i, c)
		}
		track.Records[i] = rec
	}

	return track, nil
}

// LoadSensors converts a raw table into a sensor series. Every column other than the
// timestamp is a channel; columns holding non-numeric text are listed in Dropped.
func LoadSensors(tbl *Table, fields SensorFields) (*core.SensorSeries, error) {
	times, err := Normalize(tbl, fields.Time)
	if err != nil {
		return nil, err
	}
	tsCol := tbl.Index(fields.Time)

	series := &core.SensorSeries{
		Source:       tbl.Source,
		TimeField:    fields.Time,
		SkippedLines: tbl.SkippedLines,
		Samples:      make([]core.Sample, len(tbl.Rows)),
	}

	var cols [][]float64
	for c, h := range tbl.Header {
		if c == tsCol {
			continue
		}
		values := make([]float64, len(tbl.Rows))
		numeric := true
		for r := range tbl.Rows {
			v, ok := parseNumber(tbl.Cell(r, c))
			if !ok {
				numeric = false
				break
			}
			values[r] = v
		}
		if !numeric {
			series.Dropped = append(series.Dropped, h)
			continue
		}
		series.Channels = append(series.Channels, h)
		cols = append(cols, values)
	}

	for r := range tbl.Rows {
		values := make([]float64, len(cols))
		for j, col := range cols {
			values[j] = col[r]
		}
		series.Samples[r] = core.Sample{Time: times[r], Values: values}
	}

	return series, nil
}

// OpenTrack reads and loads a USBL file.
func OpenTrack(path string, fields TrackFields) (*core.Track, error) {
	tbl, err := ReadFile(path, DefaultCommentPrefix)
	if err != nil {
		return nil, err
	}
	return LoadTrack(tbl, fields)
}

// OpenSensors reads and loads a sensor file, skipping leading comment lines.
func OpenSensors(path string, fields SensorFields) (*core.SensorSeries, error) {
	tbl, err := ReadFile(path, fields.CommentPrefix)
	if err != nil {
		return nil, err
	}
	return LoadSensors(tbl, fields)
}

func indexIfSet(tbl *Table, name string) int {
	if name == "" {
		return -1
	}
	return tbl.Index(name)
}
