package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/anydownbot/internal/media"
)

type exitErr struct{ code int }

func (e exitErr) Error() string { return "exit status" }
func (e exitErr) ExitCode() int { return e.code }

// fakeRunner records the last invocation and optionally creates files in the
// --output directory to mimic a finished download.
type fakeRunner struct {
	name   string
	args   []string
	stdout string
	stderr string
	err    error
	files  []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	for i, a := range args {
		if a == "--output" && i+1 < len(args) {
			dir := filepath.Dir(args[i+1])
			for _, fn := range f.files {
				_ = os.WriteFile(filepath.Join(dir, fn), []byte("data"), 0o644)
			}
		}
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func (f *fakeRunner) joined() string { return strings.Join(f.args, " ") }

func TestProbeDecodesInfo(t *testing.T) {
	r := &fakeRunner{stdout: `{"id":"abc","title":"Cats","duration":185.4,"uploader":"me","extractor_key":"Youtube"}`}
	y := NewWithRunner(Options{}, r)

	info, err := y.Probe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "Cats", info.Title)
	assert.Equal(t, 3, info.DurationMinutes())
	assert.Equal(t, "Youtube", info.Extractor)

	assert.Equal(t, DefaultBinary, r.name)
	assert.Contains(t, r.joined(), "--dump-single-json --skip-download")
	assert.Equal(t, "https://youtu.be/abc", r.args[len(r.args)-1])
}

func TestProbeExitIsDownloadError(t *testing.T) {
	r := &fakeRunner{stderr: "ERROR: Private video", err: exitErr{code: 1}}
	y := NewWithRunner(Options{}, r)

	_, err := y.Probe(context.Background(), "https://youtu.be/private")
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, 1, dlErr.ExitCode)
	assert.Contains(t, dlErr.Error(), "Private video")
}

func TestProbeStartFailureIsNotDownloadError(t *testing.T) {
	r := &fakeRunner{err: errors.New("executable file not found")}
	y := NewWithRunner(Options{Binary: "/nope/yt-dlp"}, r)

	_, err := y.Probe(context.Background(), "https://youtu.be/abc")
	require.Error(t, err)
	var dlErr *DownloadError
	assert.False(t, errors.As(err, &dlErr))
}

func TestProbeCancelled(t *testing.T) {
	r := &fakeRunner{err: exitErr{code: -1}}
	y := NewWithRunner(Options{}, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := y.Probe(ctx, "https://youtu.be/abc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadFindsMP4(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{files: []string{"Cats.mp4", "Cats.part.json"}}
	y := NewWithRunner(Options{}, r)

	path, err := y.Download(context.Background(), "https://youtu.be/abc", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Cats.mp4"), path)

	joined := r.joined()
	assert.Contains(t, joined, "--format "+DefaultFormat)
	assert.Contains(t, joined, "--merge-output-format mp4")
	assert.Contains(t, joined, "--output "+filepath.Join(dir, DefaultOutputTemplate))
}

func TestDownloadNoVideo(t *testing.T) {
	r := &fakeRunner{files: []string{"Cats.webm"}}
	y := NewWithRunner(Options{}, r)

	_, err := y.Download(context.Background(), "https://youtu.be/abc", t.TempDir())
	assert.ErrorIs(t, err, ErrNoVideo)
}

func TestCookiesOnlyWhenPresent(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "cookies.txt")
	r := &fakeRunner{stdout: "{}"}
	y := NewWithRunner(Options{CookieFile: missing}, r)
	_, err := y.Probe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.NotContains(t, r.args, "--cookies")

	require.NoError(t, os.WriteFile(missing, []byte("# Netscape HTTP Cookie File\n"), 0o600))
	_, err = y.Probe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Contains(t, r.joined(), "--cookies "+missing)
}

func TestCredentialsScopedToPlatform(t *testing.T) {
	r := &fakeRunner{stdout: "{}"}
	y := NewWithRunner(Options{
		Credentials: map[media.Platform]Credentials{
			media.Facebook: {Username: "me@example.com", Password: "secret"},
		},
	}, r)

	_, err := y.Probe(context.Background(), "https://www.facebook.com/watch/?v=1")
	require.NoError(t, err)
	assert.Contains(t, r.joined(), "--username me@example.com --password secret")

	_, err = y.Probe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.NotContains(t, r.args, "--username")
}
