package export

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output file names.
const (
	MetadataFile = "annotations_metadata.csv"
	TaggedFile   = "usbl_with_annotations.csv"
	SensorFile   = "sensor_with_annotations.csv"
)

// Writer writes an export Result into OutputDir, gzipped when Compress is set.
type Writer struct {
	OutputDir string
	Compress  bool
}

// Write writes the metadata and tagged tables, plus the sensor table when present,
// and returns the paths written. Nothing is created when res is empty.
func (w Writer) Write(res *Result) ([]string, error) {
	if res == nil || len(res.Annotations) == 0 || res.Metadata == nil {
		return nil, ErrNoAnnotations
	}
	if res.Tagged == nil || len(res.Tagged.Rows) == 0 {
		return nil, ErrNoData
	}

	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name string
		tbl  *Table
	}{
		{MetadataFile, res.Metadata},
		{TaggedFile, res.Tagged},
	}
	if res.Sensors != nil {
		files = append(files, struct {
			name string
			tbl  *Table
		}{SensorFile, res.Sensors})
	}

	var written []string
	for _, f := range files {
		path := w.path(f.name)
		if err := w.writeTable(path, f.tbl); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (w Writer) path(name string) string {
	if w.Compress {
		name += ".gz"
	}
	return filepath.Join(w.OutputDir, name)
}

func (w Writer) writeTable(path string, tbl *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return w.writeFile(f, path, tbl)
}

// writeFile encodes tbl into f and closes it; a failed close fails the write.
func (w Writer) writeFile(f io.WriteCloser, path string, tbl *Table) error {
	if err := w.encode(f, tbl); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func (w Writer) encode(out io.Writer, tbl *Table) error {
	if !w.Compress {
		return WriteCSV(out, tbl)
	}
	gw := gzip.NewWriter(out)
	if err := WriteCSV(gw, tbl); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// WriteCSV writes tbl with its header row.
func WriteCSV(out io.Writer, tbl *Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(tbl.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(tbl.Rows); err != nil {
		return err
	}
	return cw.Error()
}
