// Package image describes and builds the container image that runs the bot:
// a Go build stage, then a slim runtime carrying yt-dlp (installed from a
// pip requirements manifest) and ffmpeg for stream merging.
package image

import (
	"fmt"
	"strings"
)

// Recipe holds the inputs of the image build. Steps are emitted in a fixed
// order: base image, OS packages, Python dependencies, sources, entry point.
type Recipe struct {
	BuilderImage   string
	BaseImage      string
	SystemPackages []string
	Requirements   string
	WorkDir        string
	Package        string
	Binary         string
}

func DefaultRecipe() Recipe {
	return Recipe{
		BuilderImage:   "golang:1.25-bookworm",
		BaseImage:      "python:3.11-slim-bookworm",
		SystemPackages: []string{"build-essential", "ffmpeg"},
		Requirements:   "requirements.txt",
		WorkDir:        "/app",
		Package:        "./cmd/bot",
		Binary:         "anydown",
	}
}

func (r Recipe) Validate() error {
	switch {
	case r.BuilderImage == "":
		return fmt.Errorf("image: builder image is required")
	case r.BaseImage == "":
		return fmt.Errorf("image: base image is required")
	case r.Requirements == "":
		return fmt.Errorf("image: dependency manifest is required")
	case r.Binary == "" || r.Package == "":
		return fmt.Errorf("image: entry point is required")
	case !strings.HasPrefix(r.WorkDir, "/"):
		return fmt.Errorf("image: work dir must be absolute, got %q", r.WorkDir)
	}
	return nil
}

// Render returns the Dockerfile text for r.
func (r Recipe) Render() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&sb, format+"\n", args...) }

	w("# syntax=docker/dockerfile:1")
	w("FROM %s AS build", r.BuilderImage)
	w("WORKDIR /src")
	// go.sum is optional; -mod=mod fills in missing checksums.
	w("COPY go.mod go.sum* ./")
	w("RUN go mod download")
	w("COPY . .")
	// go-sqlite3 needs cgo.
	w("RUN CGO_ENABLED=1 go build -mod=mod -trimpath -ldflags='-s -w' -o /out/%s %s", r.Binary, r.Package)
	w("")
	w("FROM %s", r.BaseImage)
	if len(r.SystemPackages) > 0 {
		w("RUN apt-get update \\")
		w("    && apt-get install -y --no-install-recommends %s \\", strings.Join(r.SystemPackages, " "))
		w("    && rm -rf /var/lib/apt/lists/*")
	}
	w("WORKDIR %s", r.WorkDir)
	w("COPY %s .", r.Requirements)
	w("RUN pip install --no-cache-dir -r %s", r.Requirements)
	w("COPY --from=build /out/%s %s/%s", r.Binary, r.WorkDir, r.Binary)
	w("CMD [\"%s/%s\"]", r.WorkDir, r.Binary)

	return sb.String(), nil
}
