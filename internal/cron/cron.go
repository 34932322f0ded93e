package cron

import (
	"context"
	"time"

	"github.com/Louie-KC/chat/internal/metrics"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// Purger 删除过期的会话令牌。
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Start 按 every 间隔执行过期令牌清理，调用方负责 Stop。
func Start(p Purger, every time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(every).Do(purgeTokens, p); err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}

func purgeTokens(p Purger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("purge expired tokens")
		return
	}
	metrics.TokensPurgedTotal.Add(float64(n))
	log.Info().Int64("deleted", n).Msg("purge expired tokens")
}
