package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dredgeapp/dredge/internal/timeseries"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is looked up in the config directory.
const ConfigFileName = "dredge.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. DREDGE_DB_PASSWORD for db.password.
const EnvPrefix = "DREDGE"

// ExportConfig holds output settings
type ExportConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir" validate:"required"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	TagSensors     bool   `json:"tagSensors" mapstructure:"tagSensors"`
}

// SqliteConfig holds the annotation store file location
type SqliteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects the annotation store
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type" validate:"oneof=memory sqlite postgres"`
	Sqlite SqliteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds the optional time-series sink settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host" validate:"required_if=Enabled true"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol" validate:"oneof=http https"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org" validate:"required_if=Enabled true"`
	Bucket     string `json:"bucket" mapstructure:"bucket" validate:"required_if=Enabled true"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// GraylogConfig holds the optional GELF sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required_if=Enabled true"`
}

// Settings is the typed view of the loaded configuration.
type Settings struct {
	LogLevel string                  `json:"logLevel" mapstructure:"logLevel" validate:"oneof=debug info warn error"`
	LogsDir  string                  `json:"logsDir" mapstructure:"logsDir"`
	Session  string                  `json:"session" mapstructure:"session" validate:"required"`
	USBL     timeseries.TrackFields  `json:"usbl" mapstructure:"usbl"`
	Sensor   timeseries.SensorFields `json:"sensor" mapstructure:"sensor"`
	Storage  StorageConfig           `json:"storage" mapstructure:"storage"`
	DB       DBConfig                `json:"db" mapstructure:"db"`
	Export   ExportConfig            `json:"export" mapstructure:"export"`
	Influx   InfluxConfig            `json:"influx" mapstructure:"influx"`
	Graylog  GraylogConfig           `json:"graylog" mapstructure:"graylog"`
}

// SetDefaults registers default values for every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./dredgelogs")
	viper.SetDefault("session", "default")

	track := timeseries.DefaultTrackFields()
	viper.SetDefault("usbl.timeField", track.Time)
	viper.SetDefault("usbl.lonField", track.Lon)
	viper.SetDefault("usbl.latField", track.Lat)
	viper.SetDefault("usbl.beaconField", track.Beacon)
	viper.SetDefault("usbl.errMajorField", track.ErrMajor)
	viper.SetDefault("usbl.errMinorField", track.ErrMinor)

	sensor := timeseries.DefaultSensorFields()
	viper.SetDefault("sensor.timeField", sensor.Time)
	viper.SetDefault("sensor.commentPrefix", sensor.CommentPrefix)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./dredge.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dredge")

	viper.SetDefault("export.outputDir", "./annotations")
	viper.SetDefault("export.compressOutput", false)
	viper.SetDefault("export.tagSensors", false)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "dredge")
	viper.SetDefault("influx.bucket", "survey")
	viper.SetDefault("influx.backupPath", "./influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file leaves the
// defaults in place; a malformed one is an error. A .env file in configDir is loaded
// into the environment first, and DREDGE_* variables override the file.
func Load(configDir string) error {
	SetDefaults()

	_ = godotenv.Load(filepath.Join(configDir, ".env")) // ignore missing file
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Current returns the loaded configuration as validated typed settings.
func Current() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("error decoding config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(s); err != nil {
		return s, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}
