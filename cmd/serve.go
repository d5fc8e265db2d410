package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"facemorph/config"
	"facemorph/faces"
	"facemorph/handlers"
	"facemorph/processing"
	"facemorph/storage"
	"facemorph/web"

	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&config.BIND_ADDRESS, "bind", config.BIND_ADDRESS, "listen address, ignored when TLS_DOMAINS is set")
	serveCmd.Flags().StringVar(&config.UPLOAD_DIR, "upload-dir", config.UPLOAD_DIR, "directory of the disk storage")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if !config.DEBUG_MODE {
		gin.SetMode(gin.ReleaseMode)
	}
	warnInsecureDefaults()
	bucket, err := storage.BucketFromConfig()
	if err != nil {
		return err
	}
	if err = bucket.Create(); err != nil {
		return err
	}
	store, err := storage.New(bucket, config.MIN_FREE_SPACE)
	if err != nil {
		return err
	}
	pins := storage.NewPins()
	extractor := faces.Load(faceOptions())
	defer faces.Close(extractor)
	env := handlers.NewEnv(extractor, store, pins)

	ctx := cmd.Context()
	go processing.NewReaper(store, pins, config.RESULT_TTL, config.CLEANUP_INTERVAL).Start(ctx)

	router := web.NewRouter(env)
	if config.TLS_DOMAINS != "" {
		log.Infof("serve: TLS for %s, %s storage", config.TLS_DOMAINS, bucket.StorageType)
		return autotls.RunWithContext(ctx, router, strings.Split(config.TLS_DOMAINS, ",")...)
	}

	server := &http.Server{Addr: config.BIND_ADDRESS, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("serve: shutdown: %s", err)
		}
	}()
	log.Infof("serve: listening on %s, %s storage", config.BIND_ADDRESS, bucket.StorageType)
	if err = server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("serve: stopped")
	return nil
}

func warnInsecureDefaults() {
	if config.SESSION_SECRET == config.DefaultSessionSecret {
		log.Warn("serve: SESSION_SECRET is left at its default, flash cookies can be forged")
	}
}
