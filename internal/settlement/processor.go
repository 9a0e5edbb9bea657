package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor is the scheduled settlement sweep: it periodically scans for
// auctions past their end time and funnels each through the same idempotent
// SettleAuction routine as the explicit end endpoint.
type Processor struct {
	service       *Service
	sweepInterval time.Duration
}

func NewProcessor(service *Service, sweepInterval time.Duration) *Processor {
	return &Processor{
		service:       service,
		sweepInterval: sweepInterval,
	}
}

// Start begins the settlement sweep loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_sweep").Logger()
	logger.Info().Dur("interval", p.sweepInterval).Msg("starting settlement sweep")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement sweep")
			return
		case <-ticker.C:
			if err := p.sweep(ctx); err != nil {
				logger.Error().Err(err).Msg("settlement sweep failed")
			}
		}
	}
}

func (p *Processor) sweep(ctx context.Context) error {
	logger := log.With().Str("component", "settlement_sweep").Logger()

	auctions, err := p.service.db.GetSettleableAuctions(time.Now())
	if err != nil {
		return err
	}

	if len(auctions) == 0 {
		return nil
	}
	logger.Info().Int("count", len(auctions)).Msg("settling ended auctions")

	for _, a := range auctions {
		result, err := p.service.SettleAuction(ctx, a.AuctionID, false)
		if err != nil {
			// A failed auction does not stop the sweep; it is retried on the
			// next tick.
			logger.Error().
				Err(err).
				Str("auction_id", a.AuctionID).
				Msg("failed to settle auction")
			continue
		}

		logger.Info().
			Str("auction_id", a.AuctionID).
			Str("outcome", string(result.Outcome)).
			Int("refunds_failed", result.Deposits.RefundsFailed).
			Msg("auction settled by sweep")
	}

	return nil
}
