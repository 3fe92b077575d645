// Package config assembles the bot configuration from, in increasing order of
// precedence: built-in defaults, an optional YAML or JSONC file, a .env file,
// and the process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/eliseohh/anydownbot/internal/downloader"
	"github.com/eliseohh/anydownbot/internal/media"
)

// Duration accepts "90s" style strings in both YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Log struct {
	Format string `yaml:"format" json:"format"`
	Debug  bool   `yaml:"debug" json:"debug"`
}

type YTDLP struct {
	Binary          string   `yaml:"binary" json:"binary"`
	Format          string   `yaml:"format" json:"format"`
	CookieFile      string   `yaml:"cookie_file" json:"cookie_file"`
	ProbeTimeout    Duration `yaml:"probe_timeout" json:"probe_timeout"`
	DownloadTimeout Duration `yaml:"download_timeout" json:"download_timeout"`
}

type Config struct {
	Token         string   `yaml:"token" json:"token"`
	DBPath        string   `yaml:"db_path" json:"db_path"`
	HealthAddr    string   `yaml:"health_addr" json:"health_addr"`
	Workers       int      `yaml:"workers" json:"workers"`
	QueueSize     int      `yaml:"queue_size" json:"queue_size"`
	MaxVideoMB    int64    `yaml:"max_video_mb" json:"max_video_mb"`
	PollTimeout   Duration `yaml:"poll_timeout" json:"poll_timeout"`
	UploadTimeout Duration `yaml:"upload_timeout" json:"upload_timeout"`
	Log           Log      `yaml:"log" json:"log"`
	YTDLP         YTDLP    `yaml:"ytdlp" json:"ytdlp"`

	// Facebook login. The email may come from a config file or FB_EMAIL; the
	// password is read from FB_PASSWORD only and never from a file.
	FacebookEmail    string `yaml:"facebook_email" json:"facebook_email"`
	FacebookPassword string `yaml:"-" json:"-"`
}

// Error carries the operation and file involved in a configuration failure.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Default() Config {
	return Config{
		DBPath:        "./anydown.db",
		HealthAddr:    ":8080",
		Workers:       2,
		QueueSize:     16,
		MaxVideoMB:    2000,
		PollTimeout:   Duration(10 * time.Second),
		UploadTimeout: Duration(10 * time.Minute),
		Log:           Log{Format: "text"},
		YTDLP: YTDLP{
			Binary:          downloader.DefaultBinary,
			Format:          downloader.DefaultFormat,
			CookieFile:      downloader.DefaultCookieFile,
			ProbeTimeout:    Duration(time.Minute),
			DownloadTimeout: Duration(30 * time.Minute),
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return &Error{Op: "config.load_dotenv", Path: p, Err: err}
		}
	}
	return nil
}

// Load reads the optional file at path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &Error{Op: "config.load", Path: path, Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(b), cfg)
	default:
		err = fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
	if err != nil {
		return &Error{Op: "config.parse", Path: path, Err: err}
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok {
				*dst = v
				return
			}
		}
	}

	str(&cfg.Token, "TOKEN", "TELEGRAM_TOKEN")
	str(&cfg.FacebookEmail, "FB_EMAIL")
	str(&cfg.FacebookPassword, "FB_PASSWORD")
	str(&cfg.DBPath, "ANYDOWN_DB")
	str(&cfg.HealthAddr, "ANYDOWN_HEALTH_ADDR")
	str(&cfg.Log.Format, "ANYDOWN_LOG_FORMAT")
	str(&cfg.YTDLP.Binary, "ANYDOWN_YTDLP")
	str(&cfg.YTDLP.CookieFile, "ANYDOWN_COOKIE_FILE")

	ints := []struct {
		key string
		dst *int
	}{
		{"ANYDOWN_WORKERS", &cfg.Workers},
		{"ANYDOWN_QUEUE_SIZE", &cfg.QueueSize},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Op: "config.env", Path: it.key, Err: err}
		}
		*it.dst = n
	}

	if v, ok := lookup("ANYDOWN_MAX_VIDEO_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &Error{Op: "config.env", Path: "ANYDOWN_MAX_VIDEO_MB", Err: err}
		}
		cfg.MaxVideoMB = n
	}
	if v, ok := lookup("ANYDOWN_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Op: "config.env", Path: "ANYDOWN_DEBUG", Err: err}
		}
		cfg.Log.Debug = b
	}
	return nil
}

// Validate checks the settings needed to run the bot.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Token) == "" {
		errs = append(errs, errors.New("token is required (TOKEN or TELEGRAM_TOKEN)"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size must be >= 0, got %d", c.QueueSize))
	}
	if c.MaxVideoMB <= 0 {
		errs = append(errs, fmt.Errorf("max_video_mb must be > 0, got %d", c.MaxVideoMB))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if len(errs) > 0 {
		return &Error{Op: "config.validate", Err: errors.Join(errs...)}
	}
	return nil
}

func (c Config) MaxVideoBytes() int64 {
	return c.MaxVideoMB * 1024 * 1024
}

func (c Config) DownloaderOptions() downloader.Options {
	opts := downloader.Options{
		Binary:          c.YTDLP.Binary,
		Format:          c.YTDLP.Format,
		CookieFile:      c.YTDLP.CookieFile,
		ProbeTimeout:    time.Duration(c.YTDLP.ProbeTimeout),
		DownloadTimeout: time.Duration(c.YTDLP.DownloadTimeout),
	}
	if c.FacebookEmail != "" {
		opts.Credentials = map[media.Platform]downloader.Credentials{
			media.Facebook: {Username: c.FacebookEmail, Password: c.FacebookPassword},
		}
	}
	return opts
}
