package image

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOrder(t *testing.T) {
	df, err := DefaultRecipe().Render()
	require.NoError(t, err)

	steps := []string{
		"FROM golang:1.25-bookworm AS build",
		"RUN CGO_ENABLED=1 go build",
		"FROM python:3.11-slim-bookworm",
		"apt-get install -y --no-install-recommends build-essential ffmpeg",
		"COPY requirements.txt .",
		"RUN pip install --no-cache-dir -r requirements.txt",
		"COPY --from=build /out/anydown /app/anydown",
		`CMD ["/app/anydown"]`,
	}
	last := -1
	for _, s := range steps {
		idx := strings.Index(df, s)
		require.NotEqual(t, -1, idx, "missing step %q in:\n%s", s, df)
		assert.Greater(t, idx, last, "step %q out of order", s)
		last = idx
	}
}

func TestDockerfileMatchesDefaultRecipe(t *testing.T) {
	want, err := DefaultRecipe().Render()
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join("..", "..", "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, want, string(got), "regenerate with: anydown image render -o Dockerfile")
}

func TestRenderToleratesMissingGoSum(t *testing.T) {
	df, err := DefaultRecipe().Render()
	require.NoError(t, err)
	assert.Contains(t, df, "COPY go.mod go.sum* ./\n")
	assert.Contains(t, df, "go build -mod=mod ")
}

func TestRenderWithoutSystemPackages(t *testing.T) {
	r := DefaultRecipe()
	r.SystemPackages = nil
	df, err := r.Render()
	require.NoError(t, err)
	assert.NotContains(t, df, "apt-get")
}

func TestRenderValidation(t *testing.T) {
	r := DefaultRecipe()
	r.Requirements = ""
	_, err := r.Render()
	assert.ErrorContains(t, err, "dependency manifest")

	r = DefaultRecipe()
	r.WorkDir = "app"
	_, err = r.Render()
	assert.ErrorContains(t, err, "absolute")
}

type fakeEngine struct {
	files  []string
	opts   types.ImageBuildOptions
	stream string
	err    error
}

func (f *fakeEngine) ImageBuild(_ context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.opts = options
	tr := tar.NewReader(buildContext)
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		f.files = append(f.files, hdr.Name)
	}
	if f.err != nil {
		return types.ImageBuildResponse{}, f.err
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func (f *fakeEngine) Close() error { return nil }

func writeContext(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"Dockerfile":       "FROM scratch\n",
		"requirements.txt": "yt-dlp\n",
		"anydown.db":       "sqlite",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestBuildStreamsProgress(t *testing.T) {
	eng := &fakeEngine{stream: `{"stream":"Step 1/1 : FROM scratch\n"}` + "\n" + `{"stream":"Successfully tagged anydown:test\n"}` + "\n"}
	b := &Builder{cli: eng}

	var out bytes.Buffer
	err := b.Build(context.Background(), BuildOptions{ContextDir: writeContext(t), Tags: []string{"anydown:test"}}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Successfully tagged anydown:test")
	assert.Equal(t, "Dockerfile", eng.opts.Dockerfile)
	assert.True(t, eng.opts.Remove)
	assert.Contains(t, eng.files, "requirements.txt")
	assert.NotContains(t, eng.files, "anydown.db")
}

func TestBuildStreamError(t *testing.T) {
	eng := &fakeEngine{stream: `{"errorDetail":{"message":"pip install failed"},"error":"pip install failed"}` + "\n"}
	b := &Builder{cli: eng}

	err := b.Build(context.Background(), BuildOptions{ContextDir: writeContext(t), Tags: []string{"anydown:test"}}, nil)
	assert.ErrorContains(t, err, "pip install failed")
}

func TestBuildRequestError(t *testing.T) {
	b := &Builder{cli: &fakeEngine{err: errors.New("daemon not running")}}
	err := b.Build(context.Background(), BuildOptions{ContextDir: writeContext(t), Tags: []string{"x"}}, nil)
	assert.ErrorContains(t, err, "daemon not running")
}

func TestBuildNeedsTag(t *testing.T) {
	b := &Builder{cli: &fakeEngine{}}
	err := b.Build(context.Background(), BuildOptions{ContextDir: t.TempDir()}, nil)
	assert.ErrorContains(t, err, "tag")
}
