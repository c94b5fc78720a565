// Package export derives the annotation metadata table and the annotation-tagged
// position and sensor tables, and writes them as CSV.
package export

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/dredgeapp/dredge/pkg/core"
)

var (
	// ErrNoAnnotations is returned when there is nothing to export
	ErrNoAnnotations = errors.New("no annotations to export")
	// ErrNoData is returned when no position track is loaded
	ErrNoData = errors.New("no position data loaded")
)

// MetadataColumns is the header of the annotation metadata table.
var MetadataColumns = []string{
	"annotation_id",
	"annotation_name",
	"start_datetime",
	"end_datetime",
	"start_lat",
	"start_lon",
	"end_lat",
	"end_lon",
	"start_easting",
	"start_northing",
	"end_easting",
	"end_northing",
	"utm_zone",
	"hemisphere",
	"num_usbl_points",
	"notes",
	"beacon",
	"path_length_m",
}

// Source supplies annotations in creation order. *annotation.Registry satisfies it.
type Source interface {
	List() []core.Annotation
}

// Table is a rectangular string table ready for CSV output.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the cells of column name, nil if absent.
func (t *Table) Column(name string) []string {
	c := t.Index(name)
	if c < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[c]
	}
	return out
}

// TagColumn is the membership of every record in one annotation's window.
type TagColumn struct {
	AnnotationID int
	Name         string
	Values       []bool
}

// Result is the output of Export. Tags holds one column per annotation even when
// names repeat; Tagged, being a table, keeps one column per distinct name.
type Result struct {
	Annotations []core.Annotation
	Metadata    *Table
	Tagged      *Table
	Tags        []TagColumn

	// Sensors is set by TagSensors.
	Sensors *Table
}

// Export builds the metadata and tagged position tables. The empty-registry check
// runs before the track check. The beacon filter an annotation was saved with does
// not narrow its tag column.
func Export(src Source, track *core.Track) (*Result, error) {
	annotations := src.List()
	if len(annotations) == 0 {
		return nil, ErrNoAnnotations
	}
	if track.Len() == 0 {
		return nil, ErrNoData
	}

	times := make([]time.Time, track.Len())
	for i, r := range track.Records {
		times[i] = r.Time
	}
	tags := Tag(annotations, times)

	tagged := positionTable(track)
	addTags(tagged, tags)

	return &Result{
		Annotations: annotations,
		Metadata:    metadataTable(annotations),
		Tagged:      tagged,
		Tags:        tags,
	}, nil
}

// TagSensors tags every sensor sample with the annotation windows.
func TagSensors(src Source, series *core.SensorSeries) (*Table, error) {
	annotations := src.List()
	if len(annotations) == 0 {
		return nil, ErrNoAnnotations
	}
	if series.Len() == 0 {
		return nil, ErrNoData
	}

	times := make([]time.Time, series.Len())
	for i, s := range series.Samples {
		times[i] = s.Time
	}

	tbl := sensorTable(series)
	addTags(tbl, Tag(annotations, times))
	return tbl, nil
}

// Tag computes one membership column per annotation over times, inclusive at both ends.
func Tag(annotations []core.Annotation, times []time.Time) []TagColumn {
	out := make([]TagColumn, len(annotations))
	for i, a := range annotations {
		values := make([]bool, len(times))
		for j, t := range times {
			values[j] = a.Contains(t)
		}
		out[i] = TagColumn{AnnotationID: a.ID, Name: a.Name, Values: values}
	}
	return out
}

// addTags appends tag columns in order; a name already in the header is overwritten in place.
func addTags(tbl *Table, tags []TagColumn) {
	for _, tag := range tags {
		c := tbl.Index(tag.Name)
		if c < 0 {
			tbl.Header = append(tbl.Header, tag.Name)
			for i := range tbl.Rows {
				tbl.Rows[i] = append(tbl.Rows[i], "")
			}
			c = len(tbl.Header) - 1
		}
		for i, v := range tag.Values {
			tbl.Rows[i][c] = strconv.FormatBool(v)
		}
	}
}

func metadataTable(annotations []core.Annotation) *Table {
	tbl := &Table{Header: append([]string(nil), MetadataColumns...)}
	for _, a := range annotations {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(a.ID),
			a.Name,
			formatTime(a.Start),
			formatTime(a.End),
			formatFloat(a.StartLat),
			formatFloat(a.StartLon),
			formatFloat(a.EndLat),
			formatFloat(a.EndLon),
			formatFloat(a.StartEasting),
			formatFloat(a.StartNorthing),
			formatFloat(a.EndEasting),
			formatFloat(a.EndNorthing),
			strconv.Itoa(a.Zone),
			a.Hemisphere.String(),
			strconv.Itoa(a.Count),
			a.Notes,
			a.Beacon,
			formatFloat(a.PathLength),
		})
	}
	return tbl
}

// positionTable copies the track's input columns, with the timestamp column in
// normalized form, and appends easting/northing when the track is projected.
// Tracks built without a header get the canonical column set.
func positionTable(track *core.Track) *Table {
	tbl := &Table{}
	if len(track.Header) > 0 {
		tbl.Header = append(tbl.Header, track.Header...)
	} else {
		tbl.Header = canonicalHeader(track)
	}
	timeCol := tbl.Index(track.TimeField)
	if len(track.Header) == 0 {
		timeCol = 0
	}
	if track.Projected() {
		tbl.Header = append(tbl.Header, "easting", "northing")
	}

	tbl.Rows = make([][]string, len(track.Records))
	for i, r := range track.Records {
		var row []string
		if len(track.Header) > 0 {
			row = make([]string, len(track.Header), len(tbl.Header))
			copy(row, r.Cells)
		} else {
			row = canonicalRow(track, r)
		}
		if timeCol >= 0 {
			row[timeCol] = formatTime(r.Time)
		}
		if track.Projected() {
			row = append(row, formatFloat(r.Easting), formatFloat(r.Northing))
		}
		tbl.Rows[i] = row
	}
	return tbl
}

func canonicalHeader(track *core.Track) []string {
	h := []string{"datetime"}
	if track.HasBeacon {
		h = append(h, "beacon_name")
	}
	h = append(h, "longitude_deg", "latitude_deg")
	if track.HasErrorEllipse {
		h = append(h, "hor_err_major", "hor_err_minor")
	}
	return h
}

func canonicalRow(track *core.Track, r core.Position) []string {
	row := []string{formatTime(r.Time)}
	if track.HasBeacon {
		row = append(row, r.Beacon)
	}
	row = append(row, formatFloat(r.Longitude), formatFloat(r.Latitude))
	if track.HasErrorEllipse {
		row = append(row, formatFloat(r.HorErrMajor), formatFloat(r.HorErrMinor))
	}
	return row
}

func sensorTable(series *core.SensorSeries) *Table {
	timeField := series.TimeField
	if timeField == "" {
		timeField = "datetime"
	}
	tbl := &Table{Header: append([]string{timeField}, series.Channels...)}
	tbl.Rows = make([][]string, len(series.Samples))
	for i, s := range series.Samples {
		row := make([]string, 0, len(tbl.Header))
		row = append(row, formatTime(s.Time))
		for _, v := range s.Values {
			row = append(row, formatFloat(v))
		}
		tbl.Rows[i] = row
	}
	return tbl
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// formatFloat writes the shortest round-tripping form; missing values are empty cells.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
