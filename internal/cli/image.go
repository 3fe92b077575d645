package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eliseohh/anydownbot/internal/image"
)

type recipeFlags struct {
	base     string
	builder  string
	packages []string
	manifest string
}

func (f *recipeFlags) bind(cmd *cobra.Command) {
	def := image.DefaultRecipe()
	cmd.Flags().StringVar(&f.base, "base", def.BaseImage, "runtime base image")
	cmd.Flags().StringVar(&f.builder, "builder", def.BuilderImage, "Go build stage image")
	cmd.Flags().StringSliceVar(&f.packages, "apt", def.SystemPackages, "OS packages installed in the runtime image")
	cmd.Flags().StringVar(&f.manifest, "requirements", def.Requirements, "pip dependency manifest")
}

func (f *recipeFlags) recipe() image.Recipe {
	r := image.DefaultRecipe()
	r.BaseImage = f.base
	r.BuilderImage = f.builder
	r.SystemPackages = f.packages
	r.Requirements = f.manifest
	return r
}

func newImageCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Render or build the bot's container image",
	}
	cmd.AddCommand(newImageRenderCmd(), newImageBuildCmd(g))
	return cmd
}

func newImageRenderCmd() *cobra.Command {
	var (
		rf     recipeFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the Dockerfile, or write it with --output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			df, err := rf.recipe().Render()
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), df)
				return err
			}
			return os.WriteFile(output, []byte(df), 0o644)
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the Dockerfile to this path")
	return cmd
}

func newImageBuildCmd(g *globalFlags) *cobra.Command {
	var (
		rf         recipeFlags
		tags       []string
		dockerfile string
		render     bool
		noCache    bool
	)
	cmd := &cobra.Command{
		Use:   "build [context-dir]",
		Short: "Build the image through the local Docker daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.loadConfig(); err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			if render {
				df, err := rf.recipe().Render()
				if err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(dir, dockerfile), []byte(df), 0o644); err != nil {
					return err
				}
			}

			b, err := image.NewBuilder()
			if err != nil {
				return err
			}
			defer b.Close()

			return b.Build(cmd.Context(), image.BuildOptions{
				ContextDir: dir,
				Dockerfile: dockerfile,
				Tags:       tags,
				NoCache:    noCache,
			}, cmd.OutOrStdout())
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", []string{"anydown:latest"}, "image tags")
	cmd.Flags().StringVarP(&dockerfile, "file", "f", "Dockerfile", "Dockerfile name inside the context")
	cmd.Flags().BoolVar(&render, "render", false, "regenerate the Dockerfile from the recipe before building")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the build cache")
	return cmd
}
