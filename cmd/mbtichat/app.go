package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/20223096/mbti-app/internal/analysis"
	"github.com/20223096/mbti-app/internal/api"
	"github.com/20223096/mbti-app/internal/config"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/profile"
	"github.com/20223096/mbti-app/internal/storage"
)

// app bundles the components one CLI invocation works with.
type app struct {
	cfg      config.Config
	store    *storage.Store
	profiles *profile.Manager
	pipe     *pipeline.Pipeline

	// ephemeral sessions keep the profile in memory and journal nothing.
	ephemeral bool
}

// loadApp reads the configuration, sets up logging, and opens the app.
var loadApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(cfg)
}

func newApp(cfg config.Config) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &app{cfg: cfg, store: store}
	a.profiles = profile.NewManager(store)
	a.pipe = a.newPipeline(store)
	return a, nil
}

func (a *app) newPipeline(journal pipeline.Journal) *pipeline.Pipeline {
	client := analysis.NewClient(a.cfg.API.BaseURL, a.cfg.API.TimeoutDuration())
	return pipeline.New(client, a.profiles, pipeline.Options{
		Greeting:      a.cfg.Session.Greeting,
		ResetGreeting: a.cfg.Session.ResetGreeting,
		HistoryWindow: a.cfg.Session.HistoryWindow,
		Journal:       journal,
	})
}

// goEphemeral moves the session onto process-local slots with no journal.
// The stored profile and exchange history are left as they were.
func (a *app) goEphemeral() {
	a.ephemeral = true
	a.profiles = profile.NewManager(storage.NewMemorySlots())
	a.pipe = a.newPipeline(nil)
}

// exchanges returns the journal reader, or nil for an ephemeral session.
func (a *app) exchanges() api.ExchangeReader {
	if a.ephemeral {
		return nil
	}
	return a.store
}

func addEphemeralFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("ephemeral", false, "keep the profile in memory and record no history")
}

// openSession loads the app and applies --ephemeral when cmd has it set.
func openSession(cmd *cobra.Command) (*app, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		a.goEphemeral()
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("mbti", "", "personality type of the other person (e.g. ISTP)")
	cmd.Flags().String("relationship-type", "", "relationship type tag (e.g. romantic_interest)")
	cmd.Flags().String("relationship-state", "", "relationship state tag (e.g. exploring)")
}

func selectionFromFlags(cmd *cobra.Command) pipeline.Selection {
	label, _ := cmd.Flags().GetString("mbti")
	relType, _ := cmd.Flags().GetString("relationship-type")
	relState, _ := cmd.Flags().GetString("relationship-state")
	return pipeline.Selection{
		Label:             label,
		RelationshipType:  relType,
		RelationshipState: relState,
	}
}
