package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songbridge/internal/formatter"
	"github.com/desertthunder/songbridge/internal/repositories"
	"github.com/desertthunder/songbridge/internal/services"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/desertthunder/songbridge/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The registry, database and orchestrator are built on first use so that commands like setup
// never touch the network or the database file.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	mu       sync.Mutex
	registry *services.Registry
	db       *sql.DB
	caches   *services.Caches
	health   *repositories.HealthRepository
	history  *repositories.ResolutionRepository
	engine   *tasks.Orchestrator
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Registry and DB are optional; when nil they are built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Registry   *services.Registry
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		registry:   opts.Registry,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, playCommand, lyricCommand, batchCommand, providersCommand, historyCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// orchestrator builds the engine on first call, restoring persisted provider health.
func (r *Runner) orchestrator(ctx context.Context) (*tasks.Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		return r.engine, nil
	}

	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	if r.registry == nil {
		registry, err := services.FromConfig(r.config, r.httpClient, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build providers: %w", err)
		}
		r.registry = registry
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	}
	r.health = repositories.NewHealthRepository(r.db)
	r.history = repositories.NewResolutionRepository(r.db)
	r.caches = services.NewCaches(r.config.Cache)

	recorder := repositories.NewHistoryRecorder(r.history, repositories.DefaultRetention)
	engine, err := tasks.FromConfig(r.config, r.registry, r.caches, recorder, r.logger)
	if err != nil {
		return nil, err
	}

	snapshots, err := r.health.List(ctx)
	if err != nil {
		r.logger.Warn("failed to load provider health, starting fresh", "error", err)
	} else {
		engine.RestoreHealth(snapshots)
		r.logger.Debug("restored provider health", "providers", len(snapshots))
	}

	r.engine = engine
	return engine, nil
}

// persistHealth saves the current provider health so the next run ranks with it.
func (r *Runner) persistHealth(ctx context.Context) error {
	r.mu.Lock()
	engine, repo := r.engine, r.health
	r.mu.Unlock()

	if engine == nil || repo == nil {
		return nil
	}
	if err := repo.SaveAll(context.WithoutCancel(ctx), engine.Health()); err != nil {
		return fmt.Errorf("failed to save provider health: %w", err)
	}
	return nil
}

// Close persists health and releases the database.
func (r *Runner) Close(ctx context.Context) error {
	if err := r.persistHealth(ctx); err != nil {
		r.logger.Warn("provider health not saved", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// watchProgress prints progress updates until the returned stop func is called.
//
// stop closes the channel and waits for pending lines to be written.
func (r *Runner) watchProgress(quiet bool) (chan tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.Done:
				r.writePlain("%s\n", formatter.Styles.OK.Render(update.Message))
			case tasks.Failed:
				r.writePlain("%s\n", formatter.Styles.Err.Render(update.Message))
			default:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
