package cmd

import (
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/beamit-app/beamit/internal/files"
	"github.com/beamit-app/beamit/internal/signaling"
	"github.com/beamit-app/beamit/internal/transfer"
	"github.com/beamit-app/beamit/internal/ui"
)

var (
	flagLink      string
	flagOutputDir string
)

var roomCodePattern = regexp.MustCompile(`^\d{6}$`)

var receiveCmd = &cobra.Command{
	Use:     "receive [code]",
	Aliases: []string{"r", "recv"},
	Short:   "Receive files from a sender",
	Long: `Join a room and receive whatever the sender beams: files land in the
output directory, text snippets print to the terminal.

Examples:
  beamit receive 482913
  beamit receive --link "https://beamit.app/?room=482913"
  beamit receive 482913 -o ~/Downloads`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := resolveRoomCode(args)
		if err != nil {
			return err
		}
		return receiveFiles(code)
	},
}

// resolveRoomCode takes the code from the positional argument or extracts it
// from a pasted room link.
func resolveRoomCode(args []string) (string, error) {
	var code string

	switch {
	case len(args) == 1:
		code = args[0]
	case flagLink != "":
		u, err := url.Parse(flagLink)
		if err != nil {
			return "", fmt.Errorf("invalid room link: %w", err)
		}
		code = u.Query().Get("room")
		if code == "" {
			return "", fmt.Errorf("room link carries no room code")
		}
	default:
		return "", fmt.Errorf("provide a room code or --link")
	}

	if !roomCodePattern.MatchString(code) {
		return "", fmt.Errorf("room code must be exactly 6 digits, got %q", code)
	}
	return code, nil
}

func receiveFiles(roomCode string) error {
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

	if err := ctx.Client.JoinRoom(roomCode, signaling.RoleReceiver); err != nil {
		return transfer.NewError("join room", err)
	}

	var (
		mu            sync.Mutex
		receivedFiles int
		receivedBytes int64
		start         time.Time
	)

	line := ui.NewProgressLine("Receiving")
	session, err := newPeerSession(ctx, false, transfer.Options{}, transfer.Hooks{
		OnFile: func(name string, data []byte) {
			path, err := files.WriteReceived(flagOutputDir, name, data)
			if err != nil {
				fmt.Println()
				ui.PrintError(err.Error())
				return
			}
			mu.Lock()
			receivedFiles++
			receivedBytes += int64(len(data))
			mu.Unlock()
			fmt.Println()
			ui.PrintSuccessf("Saved %s (%s)", path, humanize.IBytes(uint64(len(data))))
		},
		OnText: func(content string) {
			fmt.Println()
			fmt.Printf("%s %s\n", ui.IconText, ui.BoldStyle.Render(content))
		},
		OnProgress: func(snap transfer.Snapshot) {
			line.Update(snap.Progress, snap.BytesMoved, snap.TotalBytes, snap.Speed, snap.ETA, snap.Paused)
		},
		OnPeerAction: peerActionNotice,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	spin = ui.NewWaitingSpinner(fmt.Sprintf("Waiting for sender in room %s...", roomCode))
	spin.Start()
	err = session.WaitOpen(connectTimeout)
	spin.Stop()
	if err != nil {
		return err
	}
	ui.PrintSuccess("Sender connected, waiting for data...")
	printControlHint()
	start = time.Now()

	controlDone := make(chan struct{})
	defer close(controlDone)
	go runControlLoop(session.Engine(), controlDone)

	// Stay in the room until the sender leaves; a sender can beam several
	// batches over one connection.
	<-session.PeerGone()

	fmt.Println()
	mu.Lock()
	count, total := receivedFiles, receivedBytes
	mu.Unlock()

	if count > 0 {
		printSummary("Complete "+ui.IconComplete, count, total, time.Since(start))
	} else {
		ui.PrintInfo("Sender left, nothing received")
	}
	ctx.Client.LeaveRoom(roomCode)
	return nil
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagLink, "link", "l", "", "room link pasted from the sender")
	receiveCmd.Flags().StringVarP(&flagOutputDir, "output", "o", ".", "directory to save received files into")
}
