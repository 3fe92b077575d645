package image

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
)

// engine is the slice of the Docker client the builder uses.
type engine interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	Close() error
}

type Builder struct {
	cli engine
}

func NewBuilder() (*Builder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Builder{cli: cli}, nil
}

func (b *Builder) Close() error {
	return b.cli.Close()
}

type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tags       []string
	NoCache    bool
}

// Build sends ContextDir to the daemon and streams build progress to out.
// An error reported inside the progress stream fails the build.
func (b *Builder) Build(ctx context.Context, opts BuildOptions, out io.Writer) error {
	if opts.Dockerfile == "" {
		opts.Dockerfile = "Dockerfile"
	}
	if len(opts.Tags) == 0 {
		return fmt.Errorf("image: at least one tag is required")
	}

	tar, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{
		ExcludePatterns: []string{".git", "*.db", "*.db-*", "_examples"},
	})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	resp, err := b.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:        opts.Tags,
		Dockerfile:  opts.Dockerfile,
		NoCache:     opts.NoCache,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("image build %s: %w", opts.Tags[0], err)
	}
	return nil
}
