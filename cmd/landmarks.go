package cmd

import (
	"encoding/json"
	"fmt"

	"facemorph/faces"

	"github.com/spf13/cobra"
)

var landmarksIn string

var landmarksCmd = &cobra.Command{
	Use:   "landmarks",
	Short: "Print the 68 facial landmarks of --in as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		img, err := readImage(landmarksIn)
		if err != nil {
			return err
		}
		extractor := faces.Load(faceOptions())
		defer faces.Close(extractor)
		points, ok := extractor.Extract(img)
		if !ok {
			return fmt.Errorf("%s: %w", landmarksIn, faces.ErrNoFace)
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		return encoder.Encode(points.Pairs())
	},
}

func init() {
	landmarksCmd.Flags().StringVar(&landmarksIn, "in", "", "input image")
	_ = landmarksCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(landmarksCmd)
}
