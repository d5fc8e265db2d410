package cmd

import (
	"facemorph/faces"
	"facemorph/swap"

	"github.com/spf13/cobra"
)

var swapFlags struct {
	source, target, out string
}

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Paste the face of --source onto the face of --target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		src, err := readImage(swapFlags.source)
		if err != nil {
			return err
		}
		dst, err := readImage(swapFlags.target)
		if err != nil {
			return err
		}
		extractor := faces.Load(faceOptions())
		defer faces.Close(extractor)
		result, err := swap.NewCompositor(extractor).Compose(src, dst)
		if err != nil {
			return err
		}
		if err = writeImage(swapFlags.out, result.Image); err != nil {
			return err
		}
		log.Infof("swap: wrote %s, %d triangles, %d skipped", swapFlags.out, result.Triangles, result.Skipped)
		return nil
	},
}

func init() {
	swapCmd.Flags().StringVar(&swapFlags.source, "source", "", "image with the face to paste")
	swapCmd.Flags().StringVar(&swapFlags.target, "target", "", "image receiving the face")
	swapCmd.Flags().StringVar(&swapFlags.out, "out", "", "output file, the extension picks the format")
	for _, name := range []string{"source", "target", "out"} {
		_ = swapCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(swapCmd)
}
