package cmd

import (
	"context"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"facemorph/config"
	"facemorph/event"
	"facemorph/faces"
	"facemorph/utils"

	"github.com/spf13/cobra"
)

var log = event.Log

var rootCmd = &cobra.Command{
	Use:          "facemorph",
	Short:        "Face swapping and colour region segmentation",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		event.SetDebug(config.DEBUG_MODE)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.MODELS_DIR, "models-dir", config.MODELS_DIR, "directory with the dlib models")
	rootCmd.PersistentFlags().BoolVar(&config.DEBUG_MODE, "debug", config.DEBUG_MODE, "debug logging and error bodies")
}

// Execute runs the command line, it stops on SIGINT and SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func faceOptions() faces.Options {
	return faces.Options{
		ModelsDir:      config.MODELS_DIR,
		Detector:       config.FACE_DETECTOR,
		CNN:            config.FACE_DETECT_CNN,
		Select:         config.FACE_SELECT,
		PigoCascade:    config.PIGO_CASCADE,
		PigoMinQuality: config.PIGO_MIN_QUALITY,
	}
}

func readImage(fileName string) (image.Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return utils.DecodeImage(file, 0)
}

// writeImage encodes by the extension of fileName
func writeImage(fileName string, img image.Image) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if err = utils.EncodeImage(file, img, filepath.Ext(fileName), config.JPEG_QUALITY); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
