// Package config loads settings from a YAML file, VT_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/msomdec/virtual-tourist/internal/flickr"
	"github.com/msomdec/virtual-tourist/internal/service"
)

// EnvPrefix is prepended to every environment variable, so database.path
// is read from VT_DATABASE_PATH.
const EnvPrefix = "VT"

// Config is the resolved application configuration.
type Config struct {
	Addr     string
	LogLevel slog.Level

	Database Database
	Images   Images
	Flickr   Flickr
	Album    Album
	Auth     Auth
}

type Database struct {
	Driver string // sqlite or postgres
	Path   string
	DSN    string
}

type Images struct {
	Backend string // disk, database or minio
	Dir     string
	Minio   Minio
}

type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Flickr struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxBodyBytes int64
}

type Album struct {
	Size int
}

type Auth struct {
	JWTSecret    string
	BcryptCost   int
	CookieSecure bool
	// LoginRate and LoginBurst shape the per-IP limit on login and register.
	LoginRate  float64
	LoginBurst int
}

// SetDefaults registers the default value of every key. Keys must be known
// to viper for environment overrides to reach them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "virtualtourist.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("images.backend", "database")
	v.SetDefault("images.dir", "images")
	v.SetDefault("images.minio.endpoint", "")
	v.SetDefault("images.minio.access_key", "")
	v.SetDefault("images.minio.secret_key", "")
	v.SetDefault("images.minio.bucket", "virtualtourist")
	v.SetDefault("images.minio.use_ssl", false)

	v.SetDefault("flickr.api_key", "")
	v.SetDefault("flickr.base_url", flickr.DefaultBaseURL)
	v.SetDefault("flickr.timeout", flickr.DefaultTimeout)
	v.SetDefault("flickr.max_body_bytes", flickr.DefaultMaxBodyBytes)

	v.SetDefault("album.size", service.DefaultAlbumSize)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.login_rate", 0.2)
	v.SetDefault("auth.login_burst", 5)
}

// InitConfig points v at the config file and the environment. With an empty
// cfgFile it looks for .virtualtourist.yaml in $HOME and the working
// directory; a missing file there is not an error.
func InitConfig(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".virtualtourist")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	slog.Debug("using config file", "path", v.ConfigFileUsed())
	return nil
}

// BindFlags binds each flag in fs to the config key of the same name with
// dashes turned into dots, so --database-path overrides database.path.
// Flags listed in keys are bound to the given key instead.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" || f.Name == "version" {
			return
		}
		key, ok := keys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", ".")
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr: v.GetString("addr"),
		Database: Database{
			Driver: strings.ToLower(v.GetString("database.driver")),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
		},
		Images: Images{
			Backend: strings.ToLower(v.GetString("images.backend")),
			Dir:     v.GetString("images.dir"),
			Minio: Minio{
				Endpoint:  v.GetString("images.minio.endpoint"),
				AccessKey: v.GetString("images.minio.access_key"),
				SecretKey: v.GetString("images.minio.secret_key"),
				Bucket:    v.GetString("images.minio.bucket"),
				UseSSL:    v.GetBool("images.minio.use_ssl"),
			},
		},
		Flickr: Flickr{
			APIKey:       v.GetString("flickr.api_key"),
			BaseURL:      v.GetString("flickr.base_url"),
			Timeout:      v.GetDuration("flickr.timeout"),
			MaxBodyBytes: v.GetInt64("flickr.max_body_bytes"),
		},
		Album: Album{Size: v.GetInt("album.size")},
		Auth: Auth{
			JWTSecret:    v.GetString("auth.jwt_secret"),
			BcryptCost:   v.GetInt("auth.bcrypt_cost"),
			CookieSecure: v.GetBool("auth.cookie_secure"),
			LoginRate:    v.GetFloat64("auth.login_rate"),
			LoginBurst:   v.GetInt("auth.login_burst"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command needs: storage and search.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}

	switch c.Images.Backend {
	case "database":
	case "disk":
		if c.Images.Dir == "" {
			errs = append(errs, errors.New("images.dir is required for the disk backend"))
		}
	case "minio":
		if c.Images.Minio.Endpoint == "" || c.Images.Minio.Bucket == "" {
			errs = append(errs, errors.New("images.minio.endpoint and images.minio.bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("images.backend %q must be disk, database or minio", c.Images.Backend))
	}

	if c.Flickr.APIKey == "" {
		errs = append(errs, errors.New("flickr.api_key is required"))
	}
	if c.Flickr.Timeout <= 0 {
		errs = append(errs, errors.New("flickr.timeout must be positive"))
	}
	if c.Flickr.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("flickr.max_body_bytes must be positive"))
	}
	if c.Album.Size < 1 || c.Album.Size > flickr.MaxPhotos {
		errs = append(errs, fmt.Errorf("album.size must be between 1 and %d", flickr.MaxPhotos))
	}

	return errors.Join(errs...)
}

// ValidateServer is Validate plus the settings only the HTTP server uses.
func (c *Config) ValidateServer() error {
	errs := []error{c.Validate()}

	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 14 {
		errs = append(errs, errors.New("auth.bcrypt_cost must be between 4 and 14"))
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst < 1 {
		errs = append(errs, errors.New("auth.login_rate and auth.login_burst must be positive"))
	}
	return errors.Join(errs...)
}
