package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dredgeapp/dredge/internal/config"
	"github.com/dredgeapp/dredge/internal/export"
	"github.com/dredgeapp/dredge/internal/influx"
	"github.com/dredgeapp/dredge/internal/logging"
	"github.com/dredgeapp/dredge/internal/session"
	"github.com/dredgeapp/dredge/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildVersion can be set at build time via ldflags
var (
	BuildVersion string = "0.0.1"
	AppName      string = "dredge"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	SessionStartTime time.Time = time.Now()

	// stdout is where command output goes
	stdout io.Writer = os.Stdout
)

const usage = `usage: dredge <command> [flags]

commands:
  inspect    summarize the position and sensor files
  project    show the UTM projection of the position file
  select     count the records inside a window
  annotate   save a window as an annotation
  list       list saved annotations
  delete     delete an annotation by id
  clear      delete every annotation
  export     write the annotation metadata and tagged tables
`

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// flags shared by every command
type options struct {
	configDir string
	usbl      string
	sensor    string
	start     string
	end       string
	beacon    string
	name      string
	notes     string
	id        int
	point     string
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("no command provided")
	}
	cmd := strings.ToLower(args[0])

	var opts options
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.StringVar(&opts.configDir, "config", ".", "directory containing "+config.ConfigFileName)
	fs.StringVar(&opts.usbl, "usbl", "", "position CSV file")
	fs.StringVar(&opts.sensor, "sensor", "", "sensor CSV file")
	fs.String("session", "", "session name")
	fs.String("log-level", "", "debug, info, warn or error")

	switch cmd {
	case "select", "annotate":
		fs.StringVar(&opts.start, "start", "", "window start timestamp")
		fs.StringVar(&opts.end, "end", "", "window end timestamp")
		fs.StringVar(&opts.beacon, "beacon", "", "only count fixes from this beacon")
	}
	switch cmd {
	case "annotate":
		fs.StringVar(&opts.name, "name", "", "annotation name")
		fs.StringVar(&opts.notes, "notes", "", "free-form notes")
	case "delete":
		fs.IntVar(&opts.id, "id", 0, "annotation id")
	case "project":
		fs.StringVar(&opts.point, "point", "", `also project a "lon,lat" point into the track's zone`)
	case "export":
		fs.String("out", "", "output directory")
		fs.Bool("gzip", false, "gzip the output files")
		fs.Bool("influx", false, "publish to InfluxDB")
		fs.Bool("tag-sensors", false, "also write the tagged sensor table")
	case "select", "inspect", "list", "clear":
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if err := config.Load(opts.configDir); err != nil {
		return err
	}
	bindFlags(fs)
	settings, err := config.Current()
	if err != nil {
		return err
	}

	zlog, closeLogs := setupLogging(settings)
	defer closeLogs()

	store, err := storage.NewBackend(settings.Storage, zlog)
	if err != nil {
		return err
	}

	sessOpts := session.Options{
		Session:      settings.Session,
		TrackFields:  settings.USBL,
		SensorFields: settings.Sensor,
		Store:        store,
		Writer: export.Writer{
			OutputDir: settings.Export.OutputDir,
			Compress:  settings.Export.CompressOutput,
		},
		TagSensors: settings.Export.TagSensors,
		Logger:     Logger,
	}

	if cmd == "export" && settings.Influx.Enabled {
		im := influx.NewManager(zlog, settings.Influx.BackupPath)
		if err := im.Connect(ctx); err != nil {
			return err
		}
		defer im.Close()
		sessOpts.Publisher = im
	}

	ws, err := session.Open(sessOpts)
	if err != nil {
		return err
	}
	defer ws.Close()

	return dispatch(ctx, cmd, ws, opts)
}

// bindFlags maps command-line flags onto config keys; set flags override the file.
func bindFlags(fs *pflag.FlagSet) {
	keys := map[string]string{
		"session":     "session",
		"log-level":   "logLevel",
		"out":         "export.outputDir",
		"gzip":        "export.compressOutput",
		"influx":      "influx.enabled",
		"tag-sensors": "export.tagSensors",
	}
	for flag, key := range keys {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// setupLogging writes slog output to a per-run file in logsDir, falling back to stdout,
// and builds the zerolog logger for the storage and influx managers.
func setupLogging(s config.Settings) (zerolog.Logger, func()) {
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var file *os.File
	if s.LogsDir != "" {
		path := logging.LogFilePath(s.LogsDir, AppName, SessionStartTime)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				file = f
				closers = append(closers, func() { _ = f.Close() })
			}
		}
	}

	logOpts := logging.Options{
		Stamp: func() []slog.Attr {
			return []slog.Attr{slog.Duration("elapsed", time.Since(SessionStartTime).Round(time.Millisecond))}
		},
	}
	if s.Graylog.Enabled {
		if gw, err := logging.OpenGraylog(s.Graylog.Address); err == nil {
			logOpts.Graylog = gw
			closers = append(closers, func() { _ = gw.Close() })
		} else {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
	}

	SlogManager = logging.NewSlogManager()
	var zlog zerolog.Logger
	if file != nil {
		SlogManager.Setup(file, s.LogLevel, logOpts)
		zlog = logging.NewZerolog(nil, file, s.LogLevel)
	} else {
		SlogManager.Setup(nil, s.LogLevel, logOpts)
		zlog = logging.NewZerolog(os.Stderr, nil, s.LogLevel)
	}
	Logger = SlogManager.Logger()
	Logger.Debug("Starting", "app", AppName, "version", BuildVersion)

	return zlog, closeAll
}
