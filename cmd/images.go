package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List local security images",
	Long: `List local images of the default image's repository.

Examples:
  quantum-exegol images
  quantum-exegol images --all
  quantum-exegol images --snapshots
  quantum-exegol images --format json`,
	Args: cobra.NoArgs,
	RunE: runImages,
}

var (
	imagesAll       bool
	imagesSnapshots bool
	imagesFormat    string
)

func init() {
	rootCmd.AddCommand(imagesCmd)

	imagesCmd.Flags().BoolVarP(&imagesAll, "all", "a", false, "List every local image")
	imagesCmd.Flags().BoolVar(&imagesSnapshots, "snapshots", false, "List container snapshots")
	imagesCmd.Flags().StringVar(&imagesFormat, "format", formatTable, "Output format: table, json, yaml")
}

func runImages(cmd *cobra.Command, args []string) error {
	if err := validateFormat(imagesFormat); err != nil {
		return err
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		images, err := listImages(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}

		out := cmd.OutOrStdout()
		if imagesFormat != formatTable {
			if images == nil {
				images = []container.Image{}
			}
			return writeStructured(out, imagesFormat, images)
		}

		if len(images) == 0 {
			fmt.Fprintln(out, "No images found. Run 'quantum-exegol install' first.")
			return nil
		}

		now := time.Now()
		table := newTable(out, []string{"REPOSITORY", "TAG", "IMAGE ID", "CREATED", "SIZE"})
		for _, img := range images {
			table.Append([]string{
				img.Repository,
				img.Tag,
				img.ID,
				container.FormatAge(img.Created, now),
				container.FormatSize(img.Size),
			})
		}
		table.Render()
		return nil
	})
}

func listImages(ctx context.Context, m *manager.Manager) ([]container.Image, error) {
	switch {
	case imagesSnapshots:
		return m.Snapshots(ctx, "")
	case imagesAll:
		return m.Images(ctx, "")
	}

	repo, _, err := container.ParseImageRef(m.Config().DefaultImage)
	if err != nil {
		return nil, err
	}
	return m.Images(ctx, repo+":")
}
