package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pricewatch/crawler/internal/app"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"github.com/spf13/cobra"
)

var (
	checkOverrides []string
	checkWait      time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check <product name>",
	Short: "Run one check session and print every store result",
	Long: `Opens a check stream on the backend for the product, resolves the
frontend stores with the built-in adapters and prints each result as it is
merged. Overrides are submitted once the backend has declared its stores.

Example:
  pricecheck check "Galaxy A54" --override Digikala=https://www.digikala.com/product/dkp-1/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringArrayVar(&checkOverrides, "override", nil, "Store URL override as store=url (repeatable)")
	checkCmd.Flags().DurationVar(&checkWait, "wait", 60*time.Second, "Give up waiting for results after this long")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	overrides, err := parseOverrides(checkOverrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkWait)
	defer cancel()

	// the listener runs under the orchestrator lock, so it only hands events
	// over; a full buffer drops progress lines, never the final snapshot
	events := make(chan usecase.Event, 256)
	listener := usecase.ListenerFunc(func(e usecase.Event) {
		select {
		case events <- e:
		default:
		}
	})

	engine := app.NewEngine(cfg, listener, logger)
	defer engine.Shutdown()

	productName := strings.Join(args, " ")
	if _, err := engine.Orchestrator.Start(ctx, productName); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tracker := newCheckTracker(overrides, cfg.Override.MinURLLength)

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "stopped waiting:", ctx.Err())
			break loop
		case e := <-events:
			if e.Type == usecase.EventResult && format == "human" {
				writeResultLine(out, *e.Result)
			}
		case <-time.After(250 * time.Millisecond):
		}

		snap := engine.Orchestrator.Snapshot()
		for store, url := range tracker.submitFrom(snap) {
			engine.Orchestrator.SubmitOverride(store, url)
		}
		if tracker.done(snap) {
			break loop
		}
	}

	snap := engine.Orchestrator.Snapshot()
	if format == "json" {
		return writeJSON(out, snap)
	}
	fmt.Fprintln(out)
	return writeSnapshot(out, snap)
}

func parseOverrides(values []string) (map[string]string, error) {
	overrides := make(map[string]string, len(values))
	for _, v := range values {
		store, url, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(store) == "" {
			return nil, fmt.Errorf("invalid override %q, want store=url", v)
		}
		overrides[strings.TrimSpace(store)] = strings.TrimSpace(url)
	}
	return overrides, nil
}

// checkTracker decides when a terminal check session has nothing left to wait for
type checkTracker struct {
	overrides map[string]string
	minURLLen int
	expected  map[string]bool
	submitted bool
}

func newCheckTracker(overrides map[string]string, minURLLen int) *checkTracker {
	return &checkTracker{overrides: overrides, minURLLen: minURLLen, expected: make(map[string]bool)}
}

// submit returns the overrides to send once the store set is known, and
// remembers which of them will produce a result.
func (t *checkTracker) submit(stores []domain.StoreDescriptor) map[string]string {
	if t.submitted {
		return nil
	}
	t.submitted = true

	declared := make(map[string]bool, len(stores))
	for _, s := range stores {
		declared[s.Name] = true
	}
	for store, url := range t.overrides {
		if declared[store] && len([]rune(url)) >= t.minURLLen {
			t.expected[store] = true
		}
	}
	return t.overrides
}

// submitFrom submits once the snapshot shows the declared store set
func (t *checkTracker) submitFrom(snap usecase.Snapshot) map[string]string {
	if len(snap.Stores) == 0 {
		return nil
	}
	return t.submit(snap.Stores)
}

// done reports whether the stream is over, every frontend store has a
// terminal result and every extracting override has merged.
func (t *checkTracker) done(snap usecase.Snapshot) bool {
	if snap.State != domain.StateClosed {
		return false
	}
	for _, store := range snap.Stores {
		r, ok := snap.Result(store.Name)
		if !ok {
			return false
		}
		if store.IsFrontend && r.Status() == domain.ResultPending {
			return false
		}
		if t.expected[store.Name] && !r.Override {
			return false
		}
	}
	return true
}
