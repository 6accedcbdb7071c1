package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/cardkeeper/internal/flagx"
	"github.com/dmitrijs2005/cardkeeper/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so both "90s" and integer nanoseconds work. Pointers mark
// which values the file actually sets; everything else keeps its default.
type FileConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http" toml:"endpoint_addr_http"`
	PublicBaseURL               *string         `json:"public_base_url" yaml:"public_base_url" toml:"public_base_url"`
	DatabaseDSN                 *string         `json:"database_dsn" yaml:"database_dsn" toml:"database_dsn"`
	SecretKey                   *string         `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration" toml:"access_token_validity_duration"`
	StorageBackend              *string         `json:"storage_backend" yaml:"storage_backend" toml:"storage_backend"`
	UploadsDir                  *string         `json:"uploads_dir" yaml:"uploads_dir" toml:"uploads_dir"`
	S3RootUser                  *string         `json:"s3_root_user" yaml:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password" yaml:"s3_root_password" toml:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket" yaml:"s3_bucket" toml:"s3_bucket"`
	S3Region                    *string         `json:"s3_region" yaml:"s3_region" toml:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint" toml:"s3_base_endpoint"`
	S3UsePathStyle              *bool           `json:"s3_use_path_style" yaml:"s3_use_path_style" toml:"s3_use_path_style"`
	SignedURLTTL                *timex.Duration `json:"signed_url_ttl" yaml:"signed_url_ttl" toml:"signed_url_ttl"`
	MaxUploadBytes              *int64          `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	MaxConcurrentUploads        *int            `json:"max_concurrent_uploads" yaml:"max_concurrent_uploads" toml:"max_concurrent_uploads"`
	TempFileTTL                 *timex.Duration `json:"temp_file_ttl" yaml:"temp_file_ttl" toml:"temp_file_ttl"`
	TempSweepSchedule           *string         `json:"temp_sweep_schedule" yaml:"temp_sweep_schedule" toml:"temp_sweep_schedule"`
	ShutdownTimeout             *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	LogLevel                    *string         `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// parseFile loads configuration values from the file named by -c/-config.
// The format follows the extension: .yaml/.yml, .toml, anything else JSON.
// If no file is given nothing changes. If the file cannot be read or
// decoded, the function panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	fc, err := readFile(path)
	if err != nil {
		panic(err)
	}
	fc.apply(config)
}

// LoadFile returns the defaults overlaid with the file at path. Command-line
// flags are not consulted; an empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}
	fc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	fc.apply(cfg)
	return cfg, nil
}

func readFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeFile(path, b)
}

func decodeFile(path string, b []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, fc)
	case ".toml":
		_, err = toml.Decode(string(b), fc)
	default:
		err = json.Unmarshal(b, fc)
	}
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.PublicBaseURL, fc.PublicBaseURL)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	setDuration(&c.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setString(&c.StorageBackend, fc.StorageBackend)
	setString(&c.UploadsDir, fc.UploadsDir)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	if fc.S3UsePathStyle != nil {
		c.S3UsePathStyle = *fc.S3UsePathStyle
	}
	setDuration(&c.SignedURLTTL, fc.SignedURLTTL)
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.MaxConcurrentUploads != nil {
		c.MaxConcurrentUploads = *fc.MaxConcurrentUploads
	}
	setDuration(&c.TempFileTTL, fc.TempFileTTL)
	setString(&c.TempSweepSchedule, fc.TempSweepSchedule)
	setDuration(&c.ShutdownTimeout, fc.ShutdownTimeout)
	setString(&c.LogLevel, fc.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
