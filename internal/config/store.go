package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const configFileName = "config.json"

// Store loads and persists the config file. It keeps no state between calls;
// every operation goes back to disk.
type Store struct {
	platform Platform
	log      logrus.FieldLogger
}

// NewStore creates a store rooted at the platform's config directory
func NewStore(p Platform, log logrus.FieldLogger) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Store{platform: p, log: log}
}

// Platform returns the platform the store computes defaults for
func (s *Store) Platform() Platform {
	return s.platform
}

// Path returns the config file location and makes sure its directory exists.
// Failing to create the directory is not an error here; the following read or
// write reports it.
func (s *Store) Path() string {
	dir := filepath.Join(orCurrentDir(s.platform.ConfigDir), AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.WithError(err).WithField("dir", dir).Debug("could not create config directory")
	}
	return filepath.Join(dir, configFileName)
}

// Load returns the persisted config, or the defaults when the file is
// missing, unreadable or invalid. It never fails.
func (s *Store) Load() *Config {
	path := s.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.WithField("path", path).Debug("no config file, using defaults")
		} else {
			s.log.WithError(err).WithField("path", path).Warn("failed to read config, using defaults")
		}
		return Default(s.platform)
	}

	cfg, err := decode(data)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("failed to parse config, using defaults")
		return Default(s.platform)
	}

	return cfg
}

// Save overwrites the config file with cfg
func (s *Store) Save(cfg *Config) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	return s.write(cfg)
}

// Init writes the default config and returns it
func (s *Store) Init() (*Config, error) {
	cfg := Default(s.platform)
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update sets a single field and saves the whole record. Boolean values other
// than "true" and "false" fall back to the field's default without an error.
func (s *Store) Update(key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	cfg := s.Load()
	parsed, err := cfg.set(key, value)
	if err != nil {
		return err
	}
	if !parsed {
		s.log.WithFields(logrus.Fields{"key": key, "value": value}).Debug("not a boolean literal, using fallback")
	}

	return s.write(cfg)
}

// Get loads the config and returns one field as a string
func (s *Store) Get(key string) (string, error) {
	return s.Load().Get(key)
}

func (s *Store) write(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	path := s.Path()
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.log.WithField("path", path).Debug("config saved")
	return nil
}

// lock takes the advisory lock guarding writes to the config file
func (s *Store) lock() (func(), error) {
	fl := flock.New(s.Path() + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("%w: lock config: %w", ErrWrite, err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.log.WithError(err).Debug("failed to release config lock")
		}
	}, nil
}

// keyDelimiter is the viper nesting separator. Config keys never contain it,
// so every key stays a top-level field.
const keyDelimiter = "\x00"

// decode parses a config document. The document must hold exactly the config
// keys, spelled exactly, each with its exact type; anything else rejects the
// whole document.
func decode(data []byte) (*Config, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("missing key %q", key)
		}
	}
	if len(fields) != len(keys) {
		for name := range fields {
			if !IsKey(name) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, name)
			}
		}
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, strictTypes); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func strictTypes(dc *mapstructure.DecoderConfig) {
	dc.WeaklyTypedInput = false
}
