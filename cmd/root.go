package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/beamit-app/beamit/internal/config"
	"github.com/beamit-app/beamit/internal/ui"
	"github.com/beamit-app/beamit/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "beamit",
	Short:   "Beam files and text between devices over WebRTC",
	Long: `Beamit transfers files and text snippets directly between two devices
using WebRTC data channels. A lightweight relay pairs the two peers under a
6-digit room code; once connected, all bytes flow peer to peer. The same
rooms work with the browser client, so either end can be a web page.`,
	Version: version.Version,
}

// Connection flags shared by every subcommand.
var (
	flagDomain    string
	flagSTUN      string
	flagServerURL string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDomain, "domain", "d", "", "relay domain (default beamit.app)")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "custom STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server-url", "", "full websocket URL of the relay (overrides --domain)")
}

func connectionOptions() config.Options {
	return config.Options{
		Domain:     flagDomain,
		STUNServer: flagSTUN,
		ServerURL:  flagServerURL,
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
