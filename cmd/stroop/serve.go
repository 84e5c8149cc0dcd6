package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bsdlab/dp-stroop/internal/control"
	"github.com/bsdlab/dp-stroop/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control listener",
	Long: `Listens for text commands (RUN, STOP, GETSTATE) on a local TCP
socket so recording software can trigger runs remotely. Each RUN is
spawned as a subprocess of this binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		ip, _ := cmd.Flags().GetString("ip")
		port, _ := cmd.Flags().GetInt("port")
		dir, _ := cmd.Flags().GetString("config-dir")
		lvl, _ := cmd.Flags().GetString("log-level")
		if lvl == "" {
			lvl = "info"
		}

		log, closeLog, err := logging.Setup(lvl, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()

		bin, err := os.Executable()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		srv := control.New(bin, []string{"--config-dir", dir}, log)

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.ListenAndServe(context.Background(),
				fmt.Sprintf("%s:%d", ip, port))
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
				os.Exit(1)
			}
		case sig := <-shutdown:
			log.Info("shutting down control server", "signal", sig.String())
			srv.Shutdown()
			<-serverErrors
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("ip", "127.0.0.1", "Address to bind the control listener to")
	serveCmd.Flags().Int("port", 8080, "Port for the control listener")
}
