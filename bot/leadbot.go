package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadbot/crm"
)

const (
	BOOTSTRAP_TIMEOUT = 2 * time.Minute
	SHUTDOWN_TIMEOUT  = 15 * time.Second
)

type LeadBot struct {
	AIClient     AssistantClient
	CRM          LeadRecorder
	DB           Database
	State        *State
	Scheduler    *Scheduler
	Dispatcher   *Dispatcher
	Orchestrator *Orchestrator
	Config       *Config
	Profile      Profile
}

// NewLeadBot wires every component and resolves the assistant profile.
func NewLeadBot(config *Config) (*LeadBot, error) {
	log.Println("Connecting to db")
	db, err := NewDB(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("unable to get database connection: %w", err)
	}

	scheduler, err := NewScheduler()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create scheduler: %w", err)
	}

	leadBot, err := newLeadBot(
		config,
		NewAIClient(config.OpenAIKey),
		crm.NewClient(config.AirtableKey, config.AirtableBase, config.AirtableTable, config.CRMTimeout),
		db,
		scheduler,
	)
	if err != nil {
		db.Close()
		scheduler.Shutdown()
		return nil, err
	}
	return leadBot, nil
}

func newLeadBot(
	config *Config,
	aiClient AssistantClient,
	recorder LeadRecorder,
	db Database,
	scheduler *Scheduler,
) (*LeadBot, error) {
	dispatcher, err := NewDispatcher(NewCreateLeadTool(recorder, db))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), BOOTSTRAP_TIMEOUT)
	defer cancel()
	profile, err := LoadOrCreateAssistant(ctx, aiClient, db, dispatcher, config)
	if err != nil {
		return nil, err
	}
	// the tool set is fixed so a mismatch is a setup problem, not a request one
	if err := dispatcher.Validate(profile.Tools); err != nil {
		return nil, err
	}
	log.Println("Assistant loaded with ID: ", profile.AssistantID)

	state := NewState()
	return &LeadBot{
		AIClient:     aiClient,
		CRM:          recorder,
		DB:           db,
		State:        state,
		Scheduler:    scheduler,
		Dispatcher:   dispatcher,
		Orchestrator: NewOrchestrator(aiClient, dispatcher, state, profile, config),
		Config:       config,
		Profile:      profile,
	}, nil
}

func (lb *LeadBot) Handler() http.Handler {
	return NewHandlers(lb.Orchestrator).Routes()
}

// Run serves until SIGINT or SIGTERM.
func (lb *LeadBot) Run() error {
	defer lb.DB.Close()

	if err := lb.Scheduler.AddRunLockPruneJob(lb.State, lb.Config.LockIdleTTL); err != nil {
		return fmt.Errorf("unable to schedule run lock pruning: %w", err)
	}
	lb.Scheduler.Start()
	defer lb.Scheduler.Shutdown()

	server := &http.Server{
		Addr:              lb.Config.Addr,
		Handler:           lb.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// a /check may block for the whole run timeout
		WriteTimeout: lb.Config.RunTimeout + 2*lb.Config.PollInterval + 5*time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Println("Listening on ", lb.Config.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.Println("Bot is now running. Press CTRL+C to exit.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case <-sc:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("error unable to serve http %w", err)
		}
	}

	log.Println("Shutting down...")
	lb.Scheduler.CancelRunLockPruneJob()
	ctx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	return server.Shutdown(ctx)
}
