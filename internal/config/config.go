package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/mdouchement/playerdata/internal/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Drivers.
const (
	DriverStorm  = "storm"
	DriverMongo  = "mongo"
	DriverGridFS = "gridfs"
	DriverSwift  = "swift"
)

// DefaultDatabaseName is the Storm database filename.
const DefaultDatabaseName = "playerdata.db"

type (
	// A Config holds the whole service configuration.
	Config struct {
		Server      Server      `yaml:"server"`
		Database    Database    `yaml:"database"`
		Storage     Storage     `yaml:"storage"`
		Collections Collections `yaml:"collections"`
		Scheduler   Scheduler   `yaml:"scheduler"`
	}

	// Server is the HTTP server configuration.
	Server struct {
		Binding         string        `yaml:"binding"`
		Port            string        `yaml:"port"`
		BodyLimit       string        `yaml:"body_limit"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	}

	// Database is the score store configuration.
	// The Mongo settings are shared with the gridfs storage driver.
	Database struct {
		Driver        string        `yaml:"driver"`
		Path          string        `yaml:"path"`
		MongoURI      string        `yaml:"mongo_uri"`
		MongoDatabase string        `yaml:"mongo_database"`
		Timeout       time.Duration `yaml:"timeout"`
	}

	// Storage is the blob store configuration.
	Storage struct {
		Driver      string        `yaml:"driver"`
		GracePeriod time.Duration `yaml:"grace_period"`
		Swift       Swift         `yaml:"swift"`
	}

	// Swift holds the OpenStack credentials of the swift storage driver.
	Swift struct {
		AuthURL  string `yaml:"auth_url"`
		Username string `yaml:"username"`
		APIKey   string `yaml:"api_key"`
		Tenant   string `yaml:"tenant"`
		Domain   string `yaml:"domain"`
		Region   string `yaml:"region"`
	}

	// Collections configures the blob collections.
	Collections struct {
		Sprites Collection `yaml:"sprites"`
		Audio   Collection `yaml:"audio"`
	}

	// A Collection overrides the defaults of a blob collection.
	Collection struct {
		ContentTypes []string `yaml:"content_types"`
		ChunkSize    int      `yaml:"chunk_size"`
	}

	// Scheduler is the orphan sweeper configuration.
	Scheduler struct {
		Specification string `yaml:"specification"`
	}
)

// Default returns the default configuration.
func Default() *Config {
	c := &Config{}
	c.Server.Binding = "0.0.0.0"
	c.Server.Port = "5000"
	c.Server.BodyLimit = "32M"
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Database.Driver = DriverStorm
	c.Database.Path = DefaultDatabaseName
	c.Database.MongoDatabase = "playerdata"
	c.Database.Timeout = 10 * time.Second
	c.Storage.Driver = DriverStorm
	c.Storage.GracePeriod = storage.DefaultGracePeriod
	c.Storage.Swift.Domain = "Default"
	c.Scheduler.Specification = "@every 10m"
	return c
}

// Load reads the configuration file at path over the defaults and applies the environment overrides.
// An empty path only uses the defaults and the environment.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not read config file")
		}

		if err = yaml.UnmarshalStrict(data, c); err != nil {
			return nil, errors.Wrap(err, "could not parse config file")
		}
	}

	c.applyEnv()
	return c, errors.Wrap(c.Validate(), "invalid configuration")
}

func (c *Config) applyEnv() {
	c.Server.Binding = envORdefault("PLAYERDATA_BINDING", c.Server.Binding)
	c.Server.Port = envORdefault("PLAYERDATA_PORT", c.Server.Port)
	c.Database.Driver = envORdefault("PLAYERDATA_DATABASE_DRIVER", c.Database.Driver)
	c.Database.Path = nameWithEnv("DATABASE_PATH", c.Database.Path)
	c.Database.MongoURI = envORdefault("MONGO_URI", c.Database.MongoURI)
	c.Database.MongoDatabase = envORdefault("MONGO_DATABASE", c.Database.MongoDatabase)
	c.Storage.Driver = envORdefault("PLAYERDATA_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Swift.AuthURL = envORdefault("SWIFT_AUTH_URL", c.Storage.Swift.AuthURL)
	c.Storage.Swift.Username = envORdefault("SWIFT_USERNAME", c.Storage.Swift.Username)
	c.Storage.Swift.APIKey = envORdefault("SWIFT_API_KEY", c.Storage.Swift.APIKey)
	c.Storage.Swift.Tenant = envORdefault("SWIFT_TENANT", c.Storage.Swift.Tenant)
	c.Storage.Swift.Domain = envORdefault("SWIFT_DOMAIN", c.Storage.Swift.Domain)
	c.Storage.Swift.Region = envORdefault("SWIFT_REGION", c.Storage.Swift.Region)
}

// Validate checks the consistency of the configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverStorm, DriverMongo:
	default:
		return errors.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case DriverStorm, DriverGridFS, DriverSwift:
	default:
		return errors.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.UseStorm() && c.Database.Path == "" {
		return errors.New("database.path is required by the storm driver")
	}

	if c.UseMongo() && c.Database.MongoURI == "" {
		return errors.New("database.mongo_uri is required by the mongo and gridfs drivers")
	}

	if c.Storage.Driver == DriverSwift && (c.Storage.Swift.AuthURL == "" || c.Storage.Swift.Username == "") {
		return errors.New("storage.swift.auth_url and storage.swift.username are required by the swift driver")
	}

	if _, err := bytes.Parse(c.Server.BodyLimit); err != nil {
		return errors.Wrap(err, "server.body_limit")
	}

	for _, col := range []Collection{c.Collections.Sprites, c.Collections.Audio} {
		if col.ChunkSize < 0 {
			return errors.New("collections chunk_size must be positive")
		}
	}
	return nil
}

// UseStorm reports whether a Storm database has to be opened.
func (c *Config) UseStorm() bool {
	return c.Database.Driver == DriverStorm || c.Storage.Driver == DriverStorm
}

// UseMongo reports whether a MongoDB connection has to be opened.
func (c *Config) UseMongo() bool {
	return c.Database.Driver == DriverMongo || c.Storage.Driver == DriverGridFS
}

// Sprites returns the sprites collection.
func (c *Config) Sprites() storage.Collection {
	return c.Collections.Sprites.merge(storage.Sprites())
}

// Audio returns the audio collection.
func (c *Config) Audio() storage.Collection {
	return c.Collections.Audio.merge(storage.Audio())
}

func (c Collection) merge(col storage.Collection) storage.Collection {
	if len(c.ContentTypes) > 0 {
		col.ContentTypes = c.ContentTypes
	}
	if c.ChunkSize > 0 {
		col.ChunkSize = c.ChunkSize
	}
	return col
}

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, filepath.Base(name))
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}
