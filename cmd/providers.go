package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songbridge/internal/formatter"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/repositories"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProvidersList prints every registered provider with its health.
func (r *Runner) ProvidersList(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}

	health := engine.Health()
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"strategy": engine.Strategy(), "providers": health}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.Styles.Title.Render(fmt.Sprintf("Strategy: %s", engine.Strategy())))
	r.writePlain("%s\n", formatter.ProviderTable(formatter.Styles, health))
	return nil
}

// ProvidersEnable enables a provider and persists the flag.
func (r *Runner) ProvidersEnable(ctx context.Context, cmd *cli.Command) error {
	return r.toggleProvider(ctx, cmd.StringArg("id"), true)
}

// ProvidersDisable disables a provider and persists the flag.
func (r *Runner) ProvidersDisable(ctx context.Context, cmd *cli.Command) error {
	return r.toggleProvider(ctx, cmd.StringArg("id"), false)
}

func (r *Runner) toggleProvider(ctx context.Context, id string, enabled bool) error {
	if id == "" {
		return fmt.Errorf("%w: provider id", shared.ErrMissingArgument)
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	if err := engine.SetEnabled(id, enabled); err != nil {
		return err
	}
	if err := r.persistHealth(ctx); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	r.logger.Info("provider updated", "provider", id, "enabled", enabled)
	r.writePlain("✓ %s %s\n", id, state)
	return nil
}

// ProvidersReset clears the recorded health of a provider.
func (r *Runner) ProvidersReset(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: provider id", shared.ErrMissingArgument)
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	if err := engine.ResetHealth(id); err != nil {
		return err
	}
	if err := r.persistHealth(ctx); err != nil {
		return err
	}

	r.writePlain("✓ %s health reset\n", id)
	return nil
}

// History lists recent resolutions, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.orchestrator(ctx); err != nil {
		return err
	}

	items, err := r.history.List(ctx, repositories.ResolutionFilter{
		TrackID: cmd.String("track"),
		Op:      models.ResolveOp(cmd.String("op")),
		Outcome: cmd.String("outcome"),
		Limit:   cmd.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if cmd.Bool("json") {
		if items == nil {
			items = []*models.Resolution{}
		}
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	if len(items) == 0 {
		r.writePlain("No resolutions recorded yet\n")
		return nil
	}
	r.writePlain("%s\n", formatter.HistoryTable(formatter.Styles, items))
	return nil
}
