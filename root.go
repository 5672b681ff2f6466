package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pcapscope/internal/config"
	"pcapscope/internal/engine"
	"pcapscope/internal/logger"
	"pcapscope/internal/report"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pcapscope <capture-file>",
	Short: "Offline pcap decoding and traffic-analysis engine",
	Long: `pcapscope reads a libpcap capture file, dissects each frame through its
link/network/transport/application layers, reconstructs bidirectional
conversations, extracts DNS and HTTP artifacts, and flags heuristic
security anomalies.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path (rotated)")

	rootCmd.Flags().String("protocol", "", "keep only packets whose stack contains this protocol")
	rootCmd.Flags().String("src", "", "keep only packets from this source address")
	rootCmd.Flags().String("dst", "", "keep only packets to this destination address")
	rootCmd.Flags().Int("src-port", 0, "keep only packets from this source port")
	rootCmd.Flags().Int("dst-port", 0, "keep only packets to this destination port")
	rootCmd.Flags().Int("port", 0, "keep only packets with this port on either side")
	rootCmd.Flags().IntP("max-packets", "n", 0, "cap the working set after filtering (0 = unlimited)")
	rootCmd.Flags().Bool("include-packets", false, "include the full decoded packet list in the result")
	rootCmd.Flags().StringP("format", "f", "terminal", "report format (terminal|json|csv|markdown)")
	rootCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")

	bind := func(key string, flag string) {
		_ = viper.BindPFlag(key, rootCmd.Flags().Lookup(flag))
	}
	bind("filter.protocol", "protocol")
	bind("filter.src", "src")
	bind("filter.dst", "dst")
	bind("filter.src_port", "src-port")
	bind("filter.dst_port", "dst-port")
	bind("filter.port", "port")
	bind("analysis.max_packets", "max-packets")
	bind("analysis.include_packets", "include-packets")
	bind("output.format", "format")
	bind("output.file", "output")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.config/pcapscope")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("pcapscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PCAPSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LoggerConfig(false))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	analyzer := engine.New(engine.Options{
		Filter:         cfg.DisplayFilter(),
		MaxPackets:     cfg.Analysis.MaxPackets,
		IncludePackets: cfg.Analysis.IncludePackets,
		Anomaly:        cfg.AnomalyDetector(),
	}, log)

	analysis, err := analyzer.Analyze(args[0])
	if err != nil {
		return err
	}

	if cfg.Output.File != "" {
		return report.WriteFile(analysis, format, cfg.Output.File)
	}
	return report.Render(analysis, format, os.Stdout)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
