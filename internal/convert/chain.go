package convert

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"assetforge/internal/config"
	"assetforge/internal/fileutil"
	"assetforge/internal/logging"
	"assetforge/internal/services"
)

// Outcome reports the result of one conversion attempt through the chain.
// A false Converted is an expected, recoverable result, never a pack failure.
type Outcome struct {
	Converted bool
	// Strategy names the strategy that succeeded.
	Strategy string
	// Attempted lists the strategies that ran (available) in order.
	Attempted []string
	// Err carries services.ErrConversionUnavailable when no strategy was
	// available, or the last services.ErrConversionFailed otherwise. Nil on
	// success.
	Err error
}

// Chain tries an ordered list of converter strategies, stopping at the first
// success.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewChain builds the default chain from configuration: usd2gltf first,
// headless Blender as fallback.
func NewChain(cfg *config.Config, logger *slog.Logger) *Chain {
	return NewChainWithStrategies(
		time.Duration(cfg.Converters.TimeoutSeconds)*time.Second,
		logger,
		NewUSD2GLTF(cfg.Converters.USD2GLTFBinary),
		NewBlender(cfg.Converters.BlenderBinary, ""),
	)
}

// NewChainWithStrategies allows injecting strategies (used in tests).
func NewChainWithStrategies(timeout time.Duration, logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		timeout:    timeout,
		logger:     logging.NewComponentLogger(logger, "converter"),
	}
}

// Names returns the configured strategy names in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, strategy := range c.strategies {
		names = append(names, strategy.Name())
	}
	return names
}

// AnyAvailable reports whether at least one strategy can run here.
func (c *Chain) AnyAvailable() bool {
	for _, strategy := range c.strategies {
		if strategy.Available() {
			return true
		}
	}
	return false
}

// Convert transforms input into output via the first succeeding strategy.
func (c *Chain) Convert(ctx context.Context, inputPath, outputPath string) Outcome {
	logger := logging.WithContext(ctx, c.logger)
	asset := filepath.Base(inputPath)

	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return Outcome{Err: services.Wrap(services.ErrConversionFailed, "converting", "ensure output dir", filepath.Dir(outputPath), err)}
	}

	outcome := Outcome{}
	for _, strategy := range c.strategies {
		if !strategy.Available() {
			logger.Debug("converter unavailable",
				logging.String("strategy", strategy.Name()),
				logging.String(logging.FieldAsset, asset),
			)
			continue
		}
		outcome.Attempted = append(outcome.Attempted, strategy.Name())

		err := c.runStrategy(ctx, strategy, inputPath, outputPath)
		if err == nil {
			logger.Info("asset converted",
				logging.String("strategy", strategy.Name()),
				logging.String(logging.FieldAsset, asset),
			)
			outcome.Converted = true
			outcome.Strategy = strategy.Name()
			outcome.Err = nil
			return outcome
		}

		logger.Warn("converter strategy failed",
			logging.String("strategy", strategy.Name()),
			logging.String(logging.FieldAsset, asset),
			logging.Error(err),
		)
		outcome.Err = err
	}

	if len(outcome.Attempted) == 0 {
		outcome.Err = services.Wrap(services.ErrConversionUnavailable, "converting", "probe tools",
			"no converter tool installed (tried: "+joinNames(c.Names())+")", nil)
		logger.Warn("no converter available",
			logging.String(logging.FieldAsset, asset),
			logging.String("tools", joinNames(c.Names())),
		)
	}
	return outcome
}

func (c *Chain) runStrategy(ctx context.Context, strategy Strategy, inputPath, outputPath string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return strategy.Run(ctx, inputPath, outputPath)
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
