package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/core"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/spf13/cobra"
)

// rootCmd runs a routing node when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvr <network_ip> <network_port>",
	Short: "Distance vector routing node",
	Long: `dvr attaches a routing node to the network emulator at <network_ip>:<network_port>.
The node learns its id and direct links from the network, then exchanges distance vectors with its
neighbours until it is interrupted. Every routing table change is appended to log_<id>.txt.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := networkAddr(args[0], args[1])
		if err != nil {
			return err
		}

		cfg, err := localConfig(cmd)
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		return core.Start(addr, *cfg, level)
	},
}

func networkAddr(ip, port string) (string, error) {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("invalid network port %q", port)
	}
	if ip == "" {
		return "", fmt.Errorf("network ip must not be empty")
	}
	return net.JoinHostPort(ip, strconv.Itoa(p)), nil
}

// localConfig reads --config if given, then applies the flags on top of it.
func localConfig(cmd *cobra.Command) (*state.LocalCfg, error) {
	cfg := state.DefaultLocalCfg()
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath != "" {
		read, err := state.ReadLocalConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}
	flags := cmd.Flags()
	if flags.Changed("log-dir") {
		cfg.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("log-path") {
		cfg.LogPath, _ = flags.GetString("log-path")
	}
	if flags.Changed("debug") {
		cfg.DebugAddr, _ = flags.GetString("debug")
	}
	err := state.LocalConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "dvr",
		Title: "Routing Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tools",
		Title: "Tools",
	})
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.Flags().StringP("config", "c", "", "node config file")
	rootCmd.Flags().String("log-dir", state.LogDir, "directory the routing table journal is written to")
	rootCmd.Flags().String("log-path", "", "also write diagnostic logs to this file")
	rootCmd.Flags().String("debug", "", "serve /debug/vars and /debug/metrics on this address")
	rootCmd.Flags().Lookup("debug").NoOptDefVal = state.DefaultDebug
}
