// Package repairconfig loads the repair daemon's configuration,
// layering an optional YAML file under the same flag set
// cmd/go-db.go used for the teacher's storage options.
package repairconfig

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls where a repair reads from, where it stages rebuilt
// files, and how the admin HTTP surface listens.
type Config struct {
	DBPath         string `yaml:"db_path"`
	RepairPath     string `yaml:"repair_path"`
	DirectoryPerDB bool   `yaml:"directory_per_db"`
	Port           string `yaml:"port"`
}

// defaults mirrors cmd/go-db.go's flag defaults.
func defaults() Config {
	return Config{
		DBPath:         ".",
		RepairPath:     os.TempDir(),
		DirectoryPerDB: false,
		Port:           "8080",
	}
}

// LoadFromFile reads a YAML config file. A missing file is not an
// error; callers rely on flags or defaults instead.
func LoadFromFile(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers flags that override cfg's fields in place, the
// same "flags win over file" precedence cmd/go-db.go used for its
// storage options. Call flag.Parse() after BindFlags, then Validate.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the database's data files")
	fs.StringVar(&cfg.RepairPath, "repair-path", cfg.RepairPath, "Path used to stage rebuilt files during a repair")
	fs.BoolVar(&cfg.DirectoryPerDB, "directory-per-db", cfg.DirectoryPerDB, "Whether each database lives in its own subdirectory")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Admin HTTP server port")
}

// Validate rejects a config that can't be used to run a repair.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db-path must not be empty")
	}
	if c.RepairPath == "" {
		return fmt.Errorf("repair-path must not be empty")
	}
	if c.DBPath == c.RepairPath {
		return fmt.Errorf("db-path and repair-path must differ")
	}
	return nil
}
