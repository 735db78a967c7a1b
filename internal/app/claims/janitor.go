package claims

import (
	"context"
	"time"

	"github.com/robfig/cron"
	"github.com/zkemail/paytox/pkg/logger"
)

const janitorName = "ClaimsJanitorCronWorker"

type JanitorConfigJson struct {
	Schedule               string `json:"schedule"`
	SessionIdleMinutes     int    `json:"session_idle_minutes"`
	HandshakeMaxAgeMinutes int    `json:"handshake_max_age_minutes"`
	OutcomeMaxAgeMinutes   int    `json:"outcome_max_age_minutes"`
}

type JanitorConfig struct {
	Schedule        string
	SessionIdle     time.Duration
	HandshakeMaxAge time.Duration
	OutcomeMaxAge   time.Duration
}

func (j JanitorConfigJson) ConvertToDomain() JanitorConfig {
	minutes := func(v, def int) time.Duration {
		if v <= 0 {
			v = def
		}
		return time.Duration(v) * time.Minute
	}
	schedule := j.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	return JanitorConfig{
		Schedule:        schedule,
		SessionIdle:     minutes(j.SessionIdleMinutes, 30),
		HandshakeMaxAge: minutes(j.HandshakeMaxAgeMinutes, 15),
		OutcomeMaxAge:   minutes(j.OutcomeMaxAgeMinutes, 10),
	}
}

type HandshakeEvicter interface {
	Evict(maxAge time.Duration) int
}

type OutcomePruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SweepResult struct {
	Sessions   int
	Handshakes int
	Outcomes   int64
}

// Janitor periodically drops idle claim sessions, stale handshakes and auth
// outcomes nobody came back for.
type Janitor struct {
	cfg        JanitorConfig
	sessions   *Manager
	handshakes HandshakeEvicter
	outcomes   OutcomePruner
	cron       *cron.Cron
	now        func() time.Time
	log        *logger.Logger
}

func NewJanitor(cfg JanitorConfig, sessions *Manager, handshakes HandshakeEvicter, outcomes OutcomePruner, l *logger.Logger) *Janitor {
	return &Janitor{
		cfg:        cfg,
		sessions:   sessions,
		handshakes: handshakes,
		outcomes:   outcomes,
		cron:       cron.New(),
		now:        time.Now,
		log:        logger.OrDefault(l).Named("janitor"),
	}
}

func (j *Janitor) GetServiceName() string {
	return janitorName
}

func (j *Janitor) StartService(ctx context.Context) error {
	if err := j.cron.AddFunc(j.cfg.Schedule, func() { j.Sweep(ctx) }); err != nil {
		j.log.Errorf(err, "Could not add function to %s", janitorName)
		return err
	}

	j.cron.Start()
	<-ctx.Done()
	j.cron.Stop()
	return nil
}

func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	if j.sessions != nil {
		res.Sessions = j.sessions.EvictIdle(j.cfg.SessionIdle)
	}
	if j.handshakes != nil {
		res.Handshakes = j.handshakes.Evict(j.cfg.HandshakeMaxAge)
	}
	if j.outcomes != nil {
		n, err := j.outcomes.DeleteOlderThan(ctx, j.now().UTC().Add(-j.cfg.OutcomeMaxAge))
		if err != nil {
			j.log.Error(err, "Could not prune auth outcomes")
		}
		res.Outcomes = n
	}

	if res.Sessions > 0 || res.Handshakes > 0 || res.Outcomes > 0 {
		j.log.Infof("Evicted %d sessions, %d handshakes, %d auth outcomes", res.Sessions, res.Handshakes, res.Outcomes)
	}
	return res
}
