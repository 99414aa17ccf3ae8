package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/beamit-app/beamit/internal/files"
	"github.com/beamit-app/beamit/internal/signaling"
	"github.com/beamit-app/beamit/internal/transfer"
	"github.com/beamit-app/beamit/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:     "send <file>...",
	Aliases: []string{"s"},
	Short:   "Send files to a receiver",
	Long: `Send files directly to a receiver over a WebRTC data channel.

A room code is generated and shown; the receiver joins with
"beamit receive <code>" or by opening the room link in a browser.

Examples:
  beamit send notes.txt photo.jpg
  beamit send --domain relay.example.com big.iso`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFiles(args)
	},
}

func sendFiles(paths []string) error {
	spin := ui.NewSpinner("Validating files...")
	spin.Start()
	infos, err := files.ValidateFiles(paths)
	spin.Stop()
	if err != nil {
		return err
	}

	displayFileTable(infos)

	cfg, err := LoadConfig(connectionOptions())
	if err != nil {
		return err
	}

	fmt.Println()
	spin = ui.NewConnectionSpinner("Connecting to server...")
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

	line := ui.NewProgressLine(fmt.Sprintf("Sending %d file(s)", len(infos)))
	session, err := newPeerSession(ctx, true, transfer.Options{}, transfer.Hooks{
		OnProgress: func(snap transfer.Snapshot) {
			line.Update(snap.Progress, snap.BytesMoved, snap.TotalBytes, snap.Speed, snap.ETA, snap.Paused)
		},
		OnPeerAction: peerActionNotice,
	})
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
	ui.PrintSuccess("Receiver connected")
	printControlHint()

	items, cleanup, err := openItems(infos)
	if err != nil {
		return err
	}
	defer cleanup()

	controlDone := make(chan struct{})
	defer close(controlDone)
	go runControlLoop(session.Engine(), controlDone)

	start := time.Now()
	if err := session.Engine().SendFiles(items); err != nil {
		fmt.Println()
		return err
	}
	line.Finish()

	duration := time.Since(start)
	total := files.TotalSize(infos)
	printSummary("Complete "+ui.IconComplete, len(infos), total, duration)

	ctx.Client.LeaveRoom(roomCode)
	return nil
}

func displayFileTable(infos []files.FileInfo) {
	items := make([]ui.FileTableItem, len(infos))
	for i, f := range infos {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size}
	}
	fmt.Println()
	ui.NewFileTable(items).Render()
}

// openItems opens every file and returns the transfer items plus a cleanup
// closing all of them.
func openItems(infos []files.FileInfo) ([]transfer.Item, func(), error) {
	items := make([]transfer.Item, 0, len(infos))
	handles := make([]*os.File, 0, len(infos))

	cleanup := func() {
		for _, f := range handles {
			f.Close()
		}
	}

	for _, info := range infos {
		f, err := os.Open(info.Path)
		if err != nil {
			cleanup()
			return nil, nil, transfer.NewFileError("open", info.Name, err)
		}
		handles = append(handles, f)
		items = append(items, transfer.Item{Name: info.Name, Size: info.Size, Data: f})
	}

	return items, cleanup, nil
}

func peerActionNotice(action transfer.ControlAction) {
	fmt.Println()
	switch action {
	case transfer.ActionPause:
		ui.PrintInfo("Peer paused the transfer")
	case transfer.ActionResume:
		ui.PrintInfo("Peer resumed the transfer")
	case transfer.ActionCancel:
		ui.PrintWarning("Peer cancelled the transfer")
	}
}

func printSummary(status string, fileCount int, totalBytes int64, duration time.Duration) {
	speed := "0 B/s"
	if secs := duration.Seconds(); secs > 0 {
		speed = humanize.IBytes(uint64(float64(totalBytes)/secs)) + "/s"
	}

	fmt.Println()
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    status,
		Files:     fileCount,
		TotalSize: humanize.IBytes(uint64(totalBytes)),
		Duration:  duration.Round(time.Millisecond).String(),
		Speed:     speed,
	})
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
