package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/core"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/emu"
	"github.com/spf13/cobra"
)

var emuCmd = &cobra.Command{
	Use:   "emu <topology.yaml>",
	Short: "Runs the network emulator for a topology",
	Long: `emu listens for routing nodes, assigns them to the topology nodes in declaration order and
relays every vector a node sends to its neighbours, applying the loss and latency of each link.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := emu.ReadTopology(args[0])
		if err != nil {
			return err
		}
		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, logFile, err := core.NewLogger("emu", "", level)
		if err != nil {
			return err
		}
		defer logFile.Close()

		listen, _ := cmd.Flags().GetString("listen")
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancelCause(context.Background())
		defer cancel(context.Canceled)
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(c)
		go func() {
			select {
			case <-c:
				cancel(errors.New("received shutdown signal"))
			case <-ctx.Done():
			}
		}()

		n := emu.NewNetwork(topo, logger)
		err = n.Serve(ctx, ln)
		logger.Info("network stopped", "reason", context.Cause(ctx))
		closeErr := n.Close()
		if err != nil {
			return err
		}
		return closeErr
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(emuCmd)
	emuCmd.Flags().StringP("listen", "l", "127.0.0.1:8000", "address the emulator listens on")
}
