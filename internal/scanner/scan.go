package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/buemura/scanward/pkg/types"
	"go.uber.org/zap"
)

// Scan runs the full protocol for target: crawl, attack, then alert
// collection. Any failure is returned as a *PhaseError naming the state the
// scan was in.
func (c *Client) Scan(ctx context.Context, target string) ([]types.Vulnerability, error) {
	log := c.logger.With(zap.String("target", target))
	phase := PhaseNotStarted
	fail := func(err error) ([]types.Vulnerability, error) {
		log.Error("scan phase failed", zap.String("phase", string(phase)), zap.Error(err))
		return nil, &PhaseError{Phase: phase, Err: err}
	}

	if c.cfg.NewSessionPerScan {
		c.PrimeSession(ctx, fmt.Sprintf("scanward-%d", time.Now().UnixNano()))
	}
	c.TouchURL(ctx, target)

	crawlID, err := c.StartCrawl(ctx, target)
	if err != nil {
		return fail(err)
	}
	phase = PhaseCrawlRunning
	log.Info("crawl started", zap.String("job_id", crawlID))

	if err := c.PollCrawl(ctx, crawlID); err != nil {
		return fail(err)
	}
	phase = PhaseCrawlDone

	attackID, err := c.StartAttackScan(ctx, target)
	if err != nil {
		return fail(err)
	}
	phase = PhaseAttackRunning
	log.Info("attack scan started", zap.String("job_id", attackID))

	if err := c.PollAttackScan(ctx, attackID); err != nil {
		return fail(err)
	}
	phase = PhaseAttackDone

	raw, err := c.CollectFindings(ctx, target)
	if err != nil {
		return fail(err)
	}
	phase = PhaseFindingsCollected

	vulns := Normalize(raw)
	log.Info("findings collected", zap.String("phase", string(phase)), zap.Int("alerts", len(raw)))
	return vulns, nil
}
