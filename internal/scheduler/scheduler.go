package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/iDorgham/Diet-Game-sub005/internal/logger"
)

// Jobs est la surface du moteur pilotée par les tâches planifiées
type Jobs interface {
	RecomputeLeaderboards(ctx context.Context, now time.Time) error
	RunAnticheatSweep(ctx context.Context, now time.Time) error
	CheckStreakRisks(ctx context.Context, now time.Time) error
}

// Scheduler pilote les tâches de fond : recalcul des classements selon
// leur fréquence, balayage anti-triche quotidien, signaux de risque de
// streak. Tout tourne hors des sections critiques par utilisateur.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      Jobs

	leaderboardEvery time.Duration
	sweepAt          string
}

// New crée le scheduler
func New(jobs Jobs, leaderboardEvery time.Duration, sweepAt string) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:        s,
		jobs:             jobs,
		leaderboardEvery: leaderboardEvery,
		sweepAt:          sweepAt,
	}
}

// Start lance toutes les tâches planifiées sans bloquer
func (s *Scheduler) Start() {
	s.scheduler.Every(s.leaderboardEvery).Do(s.recomputeLeaderboards)
	s.scheduler.Every(1).Hour().Do(s.checkStreakRisks)
	s.scheduler.Every(1).Day().At(s.sweepAt).Do(s.anticheatSweep)
	s.scheduler.StartAsync()
	logger.Info("scheduler démarré: classements toutes les %s, balayage anti-triche à %s UTC", s.leaderboardEvery, s.sweepAt)
}

// Stop arrête toutes les tâches
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) recomputeLeaderboards() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.jobs.RecomputeLeaderboards(ctx, time.Now().UTC()); err != nil {
		logger.Error("recalcul des classements: %v", err)
	}
}

func (s *Scheduler) checkStreakRisks() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.jobs.CheckStreakRisks(ctx, time.Now().UTC()); err != nil {
		logger.Error("évaluation des risques de streak: %v", err)
	}
}

func (s *Scheduler) anticheatSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := s.jobs.RunAnticheatSweep(ctx, time.Now().UTC()); err != nil {
		logger.Error("balayage anti-triche: %v", err)
	}
}
