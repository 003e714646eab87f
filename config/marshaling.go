package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dekarrin/tabula"
	"github.com/dekarrin/tabula/schema"
	"gopkg.in/yaml.v3"
)

type marshaledDatabase struct {
	Driver       string `yaml:"driver" json:"driver"`
	DSN          string `yaml:"dsn" json:"dsn"`
	Dialect      string `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns int    `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
}

type marshaledLog struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider" json:"provider"`
	File     string `yaml:"file,omitempty" json:"file,omitempty"`
}

type marshaledConfig struct {
	Database marshaledDatabase `yaml:"database" json:"database"`
	Logging  marshaledLog      `yaml:"logging" json:"logging"`
}

func decode(f tabula.Format, data []byte) (Config, error) {
	var cfg Config
	var mc marshaledConfig
	var err error

	switch f {
	case tabula.JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&mc)
	case tabula.YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&mc)
		if errors.Is(err, io.EOF) {
			// an empty document is an empty config
			err = nil
		}
	default:
		return cfg, fmt.Errorf("cannot unmarshal data in format %q", f.String())
	}

	if err != nil {
		return cfg, err
	}

	cfg.Format = f
	err = unmarshalConfig(&cfg, mc)
	return cfg, err
}

func encode(f tabula.Format, c Config) ([]byte, error) {
	mc := marshalConfig(c)
	var err error
	var data []byte

	switch f {
	case tabula.JSON:
		data, err = json.MarshalIndent(mc, "", "  ")
	case tabula.YAML:
		data, err = yaml.Marshal(mc)
	default:
		return nil, fmt.Errorf("cannot marshal data in format %q", f.String())
	}

	return data, err
}

// SupportedFormats returns a list of formats that the config module supports
// decoding. Includes all but NoFormat.
func SupportedFormats() []tabula.Format {
	return []tabula.Format{tabula.JSON, tabula.YAML}
}

// DetectFormat detects the format of a given configuration file and returns the
// Format that can decode it. Returns NoFormat if the format could not be
// detected.
func DetectFormat(file string) tabula.Format {
	ext := strings.ToLower(filepath.Ext(file))
	ext = strings.TrimPrefix(ext, ".")

	for _, f := range SupportedFormats() {
		for _, checkedExt := range f.Extensions() {
			checkedExt = strings.ToLower(checkedExt)
			checkedExt = strings.TrimPrefix(checkedExt, ".")
			if ext == checkedExt {
				return f
			}
		}
	}

	return tabula.NoFormat
}

// Dump dumps the configuration into the bytes in a formatted file. This is the
// complete representation of the current state of the Config, and if parsed by
// Load, would result in an equivalent config.
//
// The config will be dumped in the same format it was loaded with, or will
// default to YAML if the cfg was created without loading from a data stream.
//
// This function will cause a panic if there is a problem marshaling the config
// data in its format.
func Dump(cfg Config) []byte {
	f := cfg.Format
	if f == tabula.NoFormat {
		f = tabula.YAML
	}
	b, err := encode(f, cfg)
	if err != nil {
		panic(fmt.Sprintf("format encoding failed: %v", err))
	}
	return b
}

// Load loads a configuration from a JSON or YAML file. The format of the file
// is determined by examining its extension; files ending in .json or .jsn are
// parsed as JSON files, and files ending in .yaml or .yml are parsed as YAML
// files. Other extensions are not supported. The extension is not
// case-sensitive.
//
// Unknown keys in the file are an error. The returned Config does not have
// defaults filled in and is not validated.
func Load(file string) (Config, error) {
	f := DetectFormat(file)
	if f == tabula.NoFormat {
		var msg strings.Builder

		formats := SupportedFormats()
		for i, f := range formats {
			exts := f.Extensions()
			for j, ext := range exts {
				// if on the last ext of the last format and there was at least
				// one before, add a leading "or "
				if j+1 >= len(exts) && i+1 >= len(formats) && msg.Len() > 0 {
					msg.WriteString("or ")
				}

				msg.WriteRune('.')
				msg.WriteString(ext)

				// if there is at least one more extension, add an ", "
				if j+1 < len(exts) || i+1 < len(formats) {
					msg.WriteString(", ")
				}
			}
		}

		return Config{}, fmt.Errorf("%s: incompatible format; must be a %s file", file, msg.String())
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", file, err)
	}

	cfg, err := decode(f, data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", file, err)
	}
	return cfg, nil
}

// unmarshal completely replaces all attributes.
//
// does no validation except that which is required for parsing.
func unmarshalLog(log *Log, m marshaledLog) error {
	var err error

	log.Enabled = m.Enabled
	log.Provider, err = tabula.ParseLogProvider(m.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	log.File = m.File

	return nil
}

// marshal returns the marshaledLog that would re-create Log if passed to
// unmarshal.
func marshalLog(log Log) marshaledLog {
	return marshaledLog{
		Enabled:  log.Enabled,
		Provider: log.Provider.String(),
		File:     log.File,
	}
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledDatabase.
//
// does no validation except that which is required for parsing.
func unmarshalDatabase(db *Database, m marshaledDatabase) error {
	var err error

	db.Dialect = schema.SQLite
	if m.Dialect != "" {
		db.Dialect, err = schema.ParseDialect(m.Dialect)
		if err != nil {
			return fmt.Errorf("dialect: %w", err)
		}
	}

	db.Driver = m.Driver
	db.DSN = m.DSN
	db.MaxOpenConns = m.MaxOpenConns
	db.MaxIdleConns = m.MaxIdleConns

	return nil
}

// marshal converts db to the marshaledDatabase that would recreate it if
// passed to unmarshal.
func marshalDatabase(db Database) marshaledDatabase {
	return marshaledDatabase{
		Driver:       db.Driver,
		DSN:          db.DSN,
		Dialect:      db.Dialect.String(),
		MaxOpenConns: db.MaxOpenConns,
		MaxIdleConns: db.MaxIdleConns,
	}
}

func unmarshalConfig(cfg *Config, m marshaledConfig) error {
	if err := unmarshalDatabase(&cfg.Database, m.Database); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := unmarshalLog(&cfg.Log, m.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

func marshalConfig(cfg Config) marshaledConfig {
	return marshaledConfig{
		Database: marshalDatabase(cfg.Database),
		Logging:  marshalLog(cfg.Log),
	}
}
