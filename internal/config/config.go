package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for nayancam.
type Config struct {
	DeviceID   string           `toml:"device_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Clustering ClusteringConfig `toml:"clustering"`
	Retention  RetentionConfig  `toml:"retention"`
	Sensor     SensorConfig     `toml:"sensor"`
	Recordings RecordingsConfig `toml:"recordings"`
}

// Duration is a time.Duration that reads and writes as "30m", "1h15m" etc.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// EncryptionConfig holds paths to the age key pair used to encrypt archived
// recordings.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age", "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the device database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ServerConfig points at the Nayan REST API.
type ServerConfig struct {
	BaseURL           string   `toml:"base_url"`
	RouteURL          string   `toml:"route_url,omitempty"` // map-matching host; defaults to base_url
	Token             string   `toml:"token,omitempty"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
}

// ClusteringConfig tunes the route sync pass.
type ClusteringConfig struct {
	DistanceThresholdM float64  `toml:"distance_threshold_m"`
	AccuracyThresholdM float64  `toml:"accuracy_threshold_m"`
	TimeGap            Duration `toml:"time_gap"`
	SyncInterval       Duration `toml:"sync_interval"`
}

// RetentionConfig controls how long locations and segments are kept.
type RetentionConfig struct {
	MaxAge Duration `toml:"max_age"`
}

// SensorConfig tunes orientation fusion.
type SensorConfig struct {
	UpdateInterval  Duration `toml:"update_interval"`
	ValueDrift      float64  `toml:"value_drift"`
	GyroSensitivity float64  `toml:"gyro_sensitivity"`
	BiasSamples     int      `toml:"bias_samples"`
}

// RecordingsConfig describes where the camera writes finished videos.
type RecordingsConfig struct {
	Dir        string   `toml:"dir"`
	Extensions []string `toml:"extensions"`
	Ignore     []string `toml:"ignore"`
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "nayancam.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "nayancam.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Server: ServerConfig{
			BaseURL:           "https://api.nayan.co",
			RequestsPerSecond: 2,
			Timeout:           Duration{2 * time.Minute},
		},
		Clustering: ClusteringConfig{
			DistanceThresholdM: 500,
			AccuracyThresholdM: 16,
			TimeGap:            Duration{30 * time.Minute},
			SyncInterval:       Duration{15 * time.Minute},
		},
		Retention: RetentionConfig{MaxAge: Duration{7 * 24 * time.Hour}},
		Sensor: SensorConfig{
			UpdateInterval:  Duration{200 * time.Millisecond},
			ValueDrift:      0.05,
			GyroSensitivity: 0.0025,
			BiasSamples:     300,
		},
		Recordings: RecordingsConfig{
			Dir:        filepath.Join(baseDir, "recordings"),
			Extensions: []string{".mp4"},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The server token lives here.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
