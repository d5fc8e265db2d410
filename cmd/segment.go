package cmd

import (
	"facemorph/config"
	"facemorph/segment"

	"github.com/spf13/cobra"
)

var segmentFlags struct {
	in, out, labels string
	opts            segment.Options
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Recolour an image with the mean colours of its spectral clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		img, err := readImage(segmentFlags.in)
		if err != nil {
			return err
		}
		result, err := segment.Segment(img, segmentFlags.opts)
		if err != nil {
			return err
		}
		size := img.Bounds().Size()
		if err = writeImage(segmentFlags.out, segment.Upscale(result.Image, size.X, size.Y)); err != nil {
			return err
		}
		if segmentFlags.labels != "" {
			if err = writeImage(segmentFlags.labels, segment.Upscale(result.LabelMap(), size.X, size.Y)); err != nil {
				return err
			}
		}
		log.Infof("segment: wrote %s, %d regions at %dx%d", segmentFlags.out, len(result.Colors), result.Width, result.Height)
		return nil
	},
}

func init() {
	f := segmentCmd.Flags()
	f.StringVar(&segmentFlags.in, "in", "", "input image")
	f.StringVar(&segmentFlags.out, "out", "", "recoloured output image")
	f.StringVar(&segmentFlags.labels, "labels", "", "optional label map output (png)")
	f.IntVar(&segmentFlags.opts.Clusters, "clusters", config.SEGMENT_CLUSTERS, "number of colour regions")
	f.IntVar(&segmentFlags.opts.Downscale, "downscale", config.SEGMENT_DOWNSCALE, "longer side of the working image")
	f.IntVar(&segmentFlags.opts.Neighbors, "neighbors", config.SEGMENT_NEIGHBORS, "nearest neighbours per pixel")
	f.Int64Var(&segmentFlags.opts.Seed, "seed", 0, "random seed for k-means")
	_ = segmentCmd.MarkFlagRequired("in")
	_ = segmentCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(segmentCmd)
}
