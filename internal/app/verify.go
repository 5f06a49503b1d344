package app

import (
	"fmt"
	"log/slog"

	"monitoring/internal/clock"
	"monitoring/internal/config"
	"monitoring/internal/notifier"
	"monitoring/internal/objects"
)

// VerifyConfig loads configuration and resolves every object without starting the service.
// Params: config source.
// Returns: notifier count, resolution warnings, and the first load, build, or resolve error.
func VerifyConfig(source config.ConfigSource) (int, int, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return 0, 0, err
	}
	env := notifier.NewEnvironment(clock.RealClock{}, slog.New(slog.DiscardHandler))
	registry, err := objects.Build(cfg, env)
	if err != nil {
		return 0, 0, fmt.Errorf("build objects: %w", err)
	}
	var warnings, errs int
	if err := registry.ResolveAll(&warnings, &errs); err != nil {
		return 0, warnings, fmt.Errorf("resolve objects (%d errors): %w", errs, err)
	}
	return len(registry.Notifiers()), warnings, nil
}
