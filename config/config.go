// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is read from the working directory when no file is given.
const DefaultConfigFile = "dl.cfg"

// Config aggregates configuration for the application.
type Config struct {
	AWS    AWSConfig    `mapstructure:"aws"`
	GCS    GCSConfig    `mapstructure:"gcs"`
	Azure  AzureConfig  `mapstructure:"azure"`
	ETL    ETLConfig    `mapstructure:"etl"`
	DuckDB DuckDBConfig `mapstructure:"duckdb"`
}

// AWSConfig holds S3 credentials and endpoint settings. The key names match
// the [AWS] section of dl.cfg.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"aws_access_key_id"`
	SecretAccessKey string `mapstructure:"aws_secret_access_key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type GCSConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type AzureConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ETLConfig locates the source data and the output tables.
type ETLConfig struct {
	Input            string `mapstructure:"input"`
	Output           string `mapstructure:"output"`
	TimeZone         string `mapstructure:"time_zone"`
	Engine           string `mapstructure:"engine"`
	TmpDir           string `mapstructure:"tmp_dir"`
	ReadConcurrency  int    `mapstructure:"read_concurrency"`
	WriteConcurrency int    `mapstructure:"write_concurrency"`
	RecordsPerFile   int64  `mapstructure:"records_per_file"`
}

// GetTmpDir returns the configured scratch directory, or the OS default.
func (c *ETLConfig) GetTmpDir() string {
	if c.TmpDir != "" {
		return c.TmpDir
	}
	return os.TempDir()
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		AWS: AWSConfig{
			Region: "us-west-2",
		},
		ETL: ETLConfig{
			Input:            "s3a://udacity-dend/",
			Output:           "s3a://atr-udacity-dend/",
			TimeZone:         "UTC",
			Engine:           "memory",
			ReadConcurrency:  8,
			WriteConcurrency: 4,
		},
		DuckDB: DefaultDuckDBConfig(),
	}
}

// Load reads configuration from an INI file and environment variables.
// Environment variables use the prefix "SONGLAKE" and the dot character in
// keys is replaced by an underscore. For example, "etl.output" becomes
// "SONGLAKE_ETL_OUTPUT". The standard AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY variables are honored as well.
//
// An empty path reads dl.cfg from the working directory if it exists. A
// path that was given must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("SONGLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.BindEnv("aws.aws_access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("aws.aws_secret_access_key", "AWS_SECRET_ACCESS_KEY")

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		v.SetConfigType("ini")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.ETL.Input == "" {
		return errors.New("etl.input must be set")
	}
	if c.ETL.Output == "" {
		return errors.New("etl.output must be set")
	}
	switch c.ETL.Engine {
	case "memory", "duckdb":
	default:
		return fmt.Errorf("etl.engine %q must be memory or duckdb", c.ETL.Engine)
	}
	if c.ETL.ReadConcurrency < 0 || c.ETL.WriteConcurrency < 0 {
		return errors.New("etl concurrency cannot be negative")
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
