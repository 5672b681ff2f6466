package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pcapscope/internal/engine"
	"pcapscope/internal/handlers"
	"pcapscope/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Analyze uploaded captures over HTTP and stream results via WebSocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("listen", "l", ":8080", "listen address")
	serveCmd.Flags().Int("max-upload-mb", 100, "maximum upload size in MB")
	_ = viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("serve.max_upload_mb", serveCmd.Flags().Lookup("max-upload-mb"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logger.New(cfg.LoggerConfig(true))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// Serve mode always decodes the full packet list so connected clients
	// see the stream, not just the aggregates.
	analyzer := engine.New(engine.Options{
		Filter:         cfg.DisplayFilter(),
		MaxPackets:     cfg.Analysis.MaxPackets,
		IncludePackets: true,
		Anomaly:        cfg.AnomalyDetector(),
	}, log)

	srv := engine.NewServer(analyzer, log)
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, srv, int64(cfg.Serve.MaxUploadMB)<<20)

	log.Infow("pcapscope listening", "addr", cfg.Serve.Listen)
	return http.ListenAndServe(cfg.Serve.Listen, mux)
}
