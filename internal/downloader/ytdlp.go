// Package downloader drives the yt-dlp command line tool: probing media
// metadata and downloading a merged mp4 into a caller-owned directory.
package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eliseohh/anydownbot/internal/logger"
	"github.com/eliseohh/anydownbot/internal/media"
)

const (
	DefaultBinary         = "yt-dlp"
	DefaultFormat         = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	DefaultMergeFormat    = "mp4"
	DefaultOutputTemplate = "%(title)s.%(ext)s"
	DefaultCookieFile     = "cookies.txt"

	// stderrTail bounds how much yt-dlp output is kept on a DownloadError.
	stderrTail = 2048
)

// ErrNoVideo is returned when yt-dlp exits cleanly but left no mp4 behind.
var ErrNoVideo = errors.New("no video file found after download")

type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type Options struct {
	Binary          string
	Format          string
	MergeFormat     string
	OutputTemplate  string
	CookieFile      string
	Credentials     map[media.Platform]Credentials
	ProbeTimeout    time.Duration
	DownloadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.MergeFormat == "" {
		o.MergeFormat = DefaultMergeFormat
	}
	if o.OutputTemplate == "" {
		o.OutputTemplate = DefaultOutputTemplate
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = time.Minute
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 30 * time.Minute
	}
	return o
}

// Info is the subset of yt-dlp's info JSON the bot uses.
type Info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor_key"`
}

func (i Info) DurationMinutes() int {
	return int(i.Duration) / 60
}

// DownloadError is a non-zero exit of yt-dlp: private, removed, geo-blocked
// or age-restricted media, or an extractor failure.
type DownloadError struct {
	URL      string
	ExitCode int
	Stderr   string
}

func (e *DownloadError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("yt-dlp exited with code %d for %s: %s", e.ExitCode, e.URL, msg)
}

// Runner executes a command. A non-zero exit must be reported with an error
// exposing ExitCode, as *exec.ExitError does.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

type exitCoder interface {
	error
	ExitCode() int
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type YTDLP struct {
	opts   Options
	runner Runner
}

func New(opts Options) *YTDLP {
	return NewWithRunner(opts, execRunner{})
}

func NewWithRunner(opts Options, r Runner) *YTDLP {
	return &YTDLP{opts: opts.withDefaults(), runner: r}
}

// Probe fetches metadata without downloading.
func (y *YTDLP) Probe(ctx context.Context, url string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, y.opts.ProbeTimeout)
	defer cancel()

	args := append(y.commonArgs(url), "--dump-single-json", "--skip-download", "--no-playlist", url)
	out, err := y.run(ctx, url, args)
	if err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return Info{}, fmt.Errorf("decode yt-dlp info: %w", err)
	}
	return info, nil
}

// Download fetches url into dir and returns the path of the resulting mp4.
func (y *YTDLP) Download(ctx context.Context, url, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.opts.DownloadTimeout)
	defer cancel()

	args := append(y.commonArgs(url),
		"--format", y.opts.Format,
		"--merge-output-format", y.opts.MergeFormat,
		"--output", filepath.Join(dir, y.opts.OutputTemplate),
		"--no-playlist",
		url,
	)
	if _, err := y.run(ctx, url, args); err != nil {
		return "", err
	}
	return findVideo(dir)
}

func (y *YTDLP) commonArgs(url string) []string {
	args := []string{"--quiet", "--no-warnings", "--no-progress"}
	if y.opts.CookieFile != "" {
		if _, err := os.Stat(y.opts.CookieFile); err == nil {
			args = append(args, "--cookies", y.opts.CookieFile)
		}
	}
	if cred, ok := y.opts.Credentials[media.PlatformOf(url)]; ok && cred.Username != "" {
		args = append(args, "--username", cred.Username, "--password", cred.Password)
	}
	return args
}

func (y *YTDLP) run(ctx context.Context, url string, args []string) ([]byte, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	stdout, stderr, err := y.runner.Run(ctx, y.opts.Binary, args...)
	log.Debug("ytdlp.run", "url", url, "elapsed", time.Since(start), "err", err)
	if err == nil {
		return stdout, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("yt-dlp %s: %w", url, ctxErr)
	}

	var exitErr exitCoder
	if errors.As(err, &exitErr) {
		return nil, &DownloadError{URL: url, ExitCode: exitErr.ExitCode(), Stderr: tail(stderr)}
	}
	return nil, fmt.Errorf("run %s: %w", y.opts.Binary, err)
}

func findVideo(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".mp4") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoVideo
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

func tail(b []byte) string {
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
