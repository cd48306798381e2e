// Command vmpagerd boots a simulated VM core (spec.md §4.7's Lifecycle
// Controller), drives a scripted workload of simulated processes touching
// pages, and prints the final VM statistics. It is the ambient driver
// binary, not the core under spec: every interesting decision lives in
// internal/vm.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"

	"github.com/tinyrange/vmpager/internal/config"
	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/syscallshim"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
	"github.com/tinyrange/vmpager/internal/vm/vmkernel"
)

func run() error {
	configPath := flag.String("config", "", "YAML config file (defaults used if omitted)")
	procs := flag.Int("procs", 4, "number of simulated processes to fork")
	touches := flag.Int("touches", 32, "memory touches per simulated process")
	writeRatio := flag.Int("write-pct", 30, "percent of touches that are writes")
	httpAddr := flag.String("http", "", "address to serve /stats JSON on, e.g. :6060 (disabled if empty)")
	debug := flag.Bool("debug", false, "enable debug-level logging (mirrors original_source's DEBUG5 gate)")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *procs <= 0 || *procs > cfg.MaxProc {
		return fmt.Errorf("vmpagerd: -procs %d must be in (0, maxProc=%d]", *procs, cfg.MaxProc)
	}

	dev := kernel.NewMMU(cfg.PageSize, 0x10000000)
	disk := kernel.NewSwapDisk(cfg.DiskTracks, cfg.TrackSize, cfg.SectorSize)
	osProcs := kernel.NewProcessTable()

	ctrl := vmkernel.NewController(dev, disk, osProcs, cfg.MaxProc, logger, vmerr.ExitHalt)
	shim := syscallshim.New(ctrl)

	base, err := shim.VMInit(cfg.Mappings, cfg.Pages, cfg.Frames, cfg.Pagers)
	if err != nil {
		return fmt.Errorf("vmpagerd: vmInit: %w", err)
	}
	logger.Info("vm initialized", "base", fmt.Sprintf("%#x", base), "pages", cfg.Pages, "frames", cfg.Frames, "pagers", cfg.Pagers)

	if *httpAddr != "" {
		http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ctrl.Stats())
		})
		srv := &http.Server{Addr: *httpAddr}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("stats http server stopped", "error", err)
			}
		}()
		logger.Info("stats endpoint listening", "addr", *httpAddr)
		defer srv.Shutdown(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	done := make(chan struct{})

	bar := progressbar.NewOptions(*procs,
		progressbar.OptionSetDescription("forking processes"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	// Each forked process is restricted to its own disjoint slice of the
	// page-number space. The simulated MMU has a single active mapping
	// table (there is only ever one "current" process on real hardware),
	// so two processes touching the same page number concurrently would
	// race to install the same mapping; partitioning sidesteps that
	// without needing a cooperative scheduler to serialize dispatch.
	perProc := cfg.Pages / *procs
	if perProc == 0 {
		return fmt.Errorf("vmpagerd: -procs %d exceeds pages %d, each process needs at least one page", *procs, cfg.Pages)
	}

	var wg sync.WaitGroup
	for pid := 0; pid < *procs; pid++ {
		if _, err := ctrl.Fork(pid); err != nil {
			return fmt.Errorf("vmpagerd: fork pid %d: %w", pid, err)
		}
		bar.Add(1)

		wg.Add(1)
		go runWorkload(ctrl, logger, pid, pid*perProc, perProc, *touches, *writeRatio, &wg)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("workload complete")
	case sig := <-sigCh:
		logger.Warn("received signal, shutting down early", "signal", sig)
	}

	snap := shim.VMDestroy()
	fmt.Println(snap.String())
	return nil
}

// runWorkload drives one simulated process through a sequence of page
// touches, mixing reads and writes across its own page slice
// [pageOffset, pageOffset+pageCount) so the clock hand sees both
// referenced-only and dirty pages without colliding with any other
// concurrently running process's mappings.
func runWorkload(ctrl *vmkernel.Controller, logger *slog.Logger, pid, pageOffset, pageCount, touches, writePct int, wg *sync.WaitGroup) {
	defer wg.Done()
	defer ctrl.Quit(pid)

	rng := rand.New(rand.NewSource(int64(pid) + 1))
	base := ctrl.RegionBase()
	pageSize := uintptr(ctrl.PageSize())

	for i := 0; i < touches; i++ {
		page := pageOffset + rng.Intn(pageCount)
		addr := base + uintptr(page)*pageSize
		write := rng.Intn(100) < writePct

		if err := ctrl.Touch(pid, addr, write); err != nil {
			logger.Warn("process terminated mid-workload", "pid", pid, "touch", i, "error", err)
			return
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
