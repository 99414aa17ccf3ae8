package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// FileTableItem is one row in the outgoing-files table.
type FileTableItem struct {
	Index int
	Name  string
	Size  int64
}

// FileTable renders the list of files queued for a beam.
type FileTable struct {
	items []FileTableItem
}

func NewFileTable(items []FileTableItem) *FileTable {
	return &FileTable{items: items}
}

// View renders the table as a string.
func (t *FileTable) View() string {
	if len(t.items) == 0 {
		return MutedStyle.Render("No files")
	}

	headers := []string{"#", "Name", "Size"}

	var rows [][]string
	for _, item := range t.items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			truncate(item.Name, 50),
			humanize.IBytes(uint64(item.Size)),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// Render outputs the table directly to stdout.
func (t *FileTable) Render() {
	fmt.Println(t.View())
}

// RoomInfo is the banner shown to the sender after the room is created.
type RoomInfo struct {
	RoomCode string
	RoomLink string
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Room Code:  %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomCode),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

func RenderRoomInfo(code, link string) {
	info := &RoomInfo{RoomCode: code, RoomLink: link}
	fmt.Println(info.View())
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
