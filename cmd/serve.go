package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/serve"
)

var serveCmd = &cobra.Command{
	Use:   "serve <project-dir>",
	Short: "Serve a project's tiles, detections, and metadata over HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Serve.Port
		if v, _ := cmd.Flags().GetInt("port"); v != 0 {
			port = v
		}

		srv, err := serve.New(serve.Options{
			ProjectDir:    args[0],
			BasemapURL:    cfg.Serve.BasemapURL,
			BasemapFormat: cfg.Serve.BasemapFormat,
			CacheSize:     cfg.Serve.CacheSize,
			CacheTTL:      time.Duration(cfg.Serve.CacheTTLSecs) * time.Second,
		})
		if err != nil {
			return err
		}

		addr := fmt.Sprintf(":%d", port)
		zap.L().Info("serving project", zap.String("dir", args[0]), zap.String("addr", addr))

		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")

	rootCmd.AddCommand(serveCmd)
}
