package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dredgeapp/dredge/internal/export"
	"github.com/dredgeapp/dredge/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Measurement names.
const (
	MeasurementFix        = "usbl_fix"
	MeasurementAnnotation = "annotation"
)

// ErrDisabled is returned by Connect when influx.enabled is false
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Org          string
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Bucket:     viper.GetString("influx.bucket"),
		Org:        viper.GetString("influx.org"),
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot be reached,
// points go to a gzipped line-protocol backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetPrecision(time.Millisecond),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.Logger.Info().Str("bucket", m.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, m.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.Org).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, m.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.Org).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	_, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket)
	if err != nil {
		m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// WritePoints writes points to InfluxDB or the backup file.
func (m *Manager) WritePoints(ctx context.Context, points ...*influxdb2_write.Point) error {
	if len(points) == 0 {
		return nil
	}

	if m.IsValid {
		if err := m.Client.WriteAPIBlocking(m.Org, m.Bucket).WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("error sending data to InfluxDB: %w", err)
		}
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	for _, point := range points {
		lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Millisecond)
		if !strings.HasSuffix(lineProtocol, "\n") {
			lineProtocol += "\n"
		}
		if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
		}
	}
	return nil
}

// Publish writes one point per position fix, with a boolean field per annotation,
// and one point per annotation window.
func (m *Manager) Publish(ctx context.Context, session string, track *core.Track, res *export.Result) (int, error) {
	points := FixPoints(session, track, res.Tags)
	points = append(points, AnnotationPoints(session, res.Annotations)...)
	if err := m.WritePoints(ctx, points...); err != nil {
		return 0, err
	}
	m.Logger.Debug().Int("points", len(points)).Bool("backup", !m.IsValid).Msg("Published to InfluxDB")
	return len(points), nil
}

// Close flushes the backup file and closes the client.
func (m *Manager) Close() error {
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	if m.Client != nil {
		m.Client.Close()
	}
	return errors.Join(errs...)
}

// FixPoints builds the position points. Missing coordinates are left out of the fields
// and fixes with no field at all are skipped.
func FixPoints(session string, track *core.Track, tags []export.TagColumn) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, track.Len())
	for i, r := range track.Records {
		p := influxdb2_write.NewPointWithMeasurement(MeasurementFix).
			AddTag("session", session).
			SetTime(r.Time)
		if track.HasBeacon && r.Beacon != "" {
			p.AddTag("beacon", r.Beacon)
		}
		addFloat(p, "lon", r.Longitude)
		addFloat(p, "lat", r.Latitude)
		if track.Projected() {
			addFloat(p, "easting", r.Easting)
			addFloat(p, "northing", r.Northing)
		}
		for _, tag := range tags {
			p.AddField(tag.Name, tag.Values[i])
		}
		if len(p.FieldList()) == 0 {
			continue
		}
		points = append(points, p.SortTags().SortFields())
	}
	return points
}

// AnnotationPoints builds one point per annotation, stamped at its start.
func AnnotationPoints(session string, annotations []core.Annotation) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(annotations))
	for _, a := range annotations {
		p := influxdb2_write.NewPointWithMeasurement(MeasurementAnnotation).
			AddTag("session", session).
			AddTag("name", a.Name).
			AddField("id", a.ID).
			AddField("end", a.End.UnixMilli()).
			AddField("duration_s", a.End.Sub(a.Start).Seconds()).
			AddField("num_usbl_points", a.Count).
			SetTime(a.Start)
		addFloat(p, "path_length_m", a.PathLength)
		if a.Beacon != "" {
			p.AddTag("beacon", a.Beacon)
		}
		points = append(points, p.SortTags().SortFields())
	}
	return points
}

func addFloat(p *influxdb2_write.Point, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	p.AddField(name, v)
}
