package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beamit-app/beamit/internal/signaling"
	"github.com/beamit-app/beamit/internal/transfer"
	"github.com/beamit-app/beamit/internal/ui"
)

var textCmd = &cobra.Command{
	Use:     "text <message>",
	Aliases: []string{"t"},
	Short:   "Beam a text snippet to a receiver",
	Long: `Beam a short piece of text (a URL, a token, a one-liner) to the peer.
The snippet travels as a single frame, no files touch the disk.

Examples:
  beamit text "https://example.com/meeting"
  beamit t "wifi password: hunter2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendText(args[0])
	},
}

func sendText(content string) error {
	cfg, err := LoadConfig(connectionOptions())
	if err != nil {
		return err
	}

	spin := ui.NewConnectionSpinner("Connecting to server...")
	spin.Start()
	ctx, err := NewConnectionContext(cfg)
	spin.Stop()
	if err != nil {
		return err
	}
	defer ctx.Close()

	roomCode, err := generateRoomCode()
	if err != nil {
		return err
	}
	if err := ctx.Client.JoinRoom(roomCode, signaling.RoleSender); err != nil {
		return transfer.NewError("join room", err)
	}

	ui.RenderRoomInfo(roomCode, cfg.GetRoomLink(roomCode))

	session, err := newPeerSession(ctx, true, transfer.Options{}, transfer.Hooks{})
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Println()
	spin = ui.NewWaitingSpinner("Waiting for receiver to join...")
	spin.Start()
	err = session.WaitOpen(connectTimeout)
	spin.Stop()
	if err != nil {
		return err
	}

	if err := session.Engine().SendText(content); err != nil {
		return err
	}

	// Give the channel a moment to flush before teardown.
	time.Sleep(time.Second)

	ui.PrintSuccess("Text beamed")
	ctx.Client.LeaveRoom(roomCode)
	return nil
}

func init() {
	rootCmd.AddCommand(textCmd)
}
