// Command vmtop is a read-only terminal dashboard over a running vmpagerd
// instance's /stats endpoint. It never touches VM state itself — purely
// ambient glue, grounded on the teacher's internal/term package for
// terminal-output conventions, scaled down to a one-way stats readout
// instead of a full terminal emulator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/tinyrange/vmpager/internal/vm/vmstats"
)

func fetchStats(client *http.Client, url string) (vmstats.Snapshot, error) {
	var snap vmstats.Snapshot
	resp, err := client.Get(url)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("vmtop: %s returned %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func bar(used, total int64, width int) string {
	if total <= 0 {
		return strings.Repeat(" ", width)
	}
	filled := int(used * int64(width) / total)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

func render(snap vmstats.Snapshot, cols int) string {
	barWidth := cols - 20
	if barWidth < 10 {
		barWidth = 10
	}
	usedFrames := snap.Frames - snap.FreeFrames
	usedBlocks := snap.DiskBlocks - snap.FreeDiskBlocks

	var b strings.Builder
	b.WriteString(ansi.CursorPosition(1, 1))
	b.WriteString(ansi.EraseEntireScreen)
	fmt.Fprintf(&b, "vmtop  pages=%d frames=%d diskBlocks=%d\n\n", snap.Pages, snap.Frames, snap.DiskBlocks)
	fmt.Fprintf(&b, "frames [%s] %d/%d\n", bar(usedFrames, snap.Frames, barWidth), usedFrames, snap.Frames)
	fmt.Fprintf(&b, "swap   [%s] %d/%d\n\n", bar(usedBlocks, snap.DiskBlocks, barWidth), usedBlocks, snap.DiskBlocks)
	fmt.Fprintf(&b, "faults=%d switches=%d new=%d pageIns=%d pageOuts=%d replaced=%d\n",
		snap.Faults, snap.Switches, snap.New, snap.PageIns, snap.PageOuts, snap.Replaced)
	return b.String()
}

func run() error {
	addr := flag.String("addr", "http://127.0.0.1:6060/stats", "vmpagerd /stats URL to poll")
	interval := flag.Duration("interval", 500*time.Millisecond, "poll interval")
	flag.Parse()

	cols, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols <= 0 {
		cols = 80
	}

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for range ticker.C {
		snap, err := fetchStats(client, *addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vmtop: %v\n", err)
			continue
		}
		fmt.Fprint(os.Stdout, render(snap, cols))
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
