package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/config"
	"github.com/yungbote/lms-progress/internal/installer"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/background"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
	"github.com/yungbote/lms-progress/internal/migration"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/course"
	"github.com/yungbote/lms-progress/internal/progress/lesson"
	"github.com/yungbote/lms-progress/internal/progress/quiz"
	"github.com/yungbote/lms-progress/internal/progress/store"
	"github.com/yungbote/lms-progress/internal/progress/submission"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

type Services struct {
	Events bus.Bus

	Installer *installer.Installer
	Eraser    *installer.Eraser

	Courses     *course.Factory
	Lessons     *lesson.Factory
	Quizzes     *quiz.Factory
	Submissions *submission.Repository

	Queue      *actions.Queue
	Background *background.Scheduler
	Migrations *migration.Registry
	Scheduler  *migration.JobScheduler
	Verifier   *migration.Verifier
}

func wireServices(ctx context.Context, db *gorm.DB, rdb *goredis.Client, cfg config.Config, repos Repos, log *logger.Logger) (Services, error) {
	log.Info("Wiring services...")
	loc := cfg.Location()

	events, err := wireBus(rdb, cfg, log)
	if err != nil {
		return Services{}, err
	}

	schema := installer.NewSchema(db, log)
	inst := installer.New(schema, repos.Options, log)
	if err := inst.Install(ctx); err != nil {
		return Services{}, fmt.Errorf("install progress schema: %w", err)
	}

	deps := store.Deps{
		Activity:  repos.Activity,
		Structure: repos.Structure,
		Tables:    repos.Progress,
		Loc:       loc,
		UseTables: cfg.Progress.UseTables,
		Log:       log,
	}
	submissions := submission.NewRepository(db, repos.QuizSubmission, loc, log)

	queue := actions.NewQueue(repos.ScheduledAction, runtime.NewRegistry(), log)
	bg := background.NewScheduler(queue, log)
	if err := bg.Init(); err != nil {
		return Services{}, fmt.Errorf("init background scheduler: %w", err)
	}

	registry, err := wireMigrations(cfg, repos, submissions, log)
	if err != nil {
		return Services{}, err
	}
	syncEnabled := cfg.Progress.SyncEnabled
	sched := migration.NewJobScheduler(queue, repos.Options, registry, events, func() bool { return syncEnabled }, log)
	if err := sched.Init(); err != nil {
		return Services{}, fmt.Errorf("init migration scheduler: %w", err)
	}

	verifier := migration.NewVerifier(migration.VerifyDeps{
		Activity:  repos.Activity,
		Structure: repos.Structure,
		Progress:  repos.Progress,
		Options:   repos.Options,
		Events:    events,
		BatchSize: cfg.Migration.BatchSize,
		Log:       log,
	})
	verifier.Register(bg)

	return Services{
		Events:      events,
		Installer:   inst,
		Eraser:      installer.NewEraser(db, schema, repos.Options, log),
		Courses:     course.NewFactory(deps),
		Lessons:     lesson.NewFactory(deps),
		Quizzes:     quiz.NewFactory(deps),
		Submissions: submissions,
		Queue:       queue,
		Background:  bg,
		Migrations:  registry,
		Scheduler:   sched,
		Verifier:    verifier,
	}, nil
}

// wireMigrations registers the chain in run order.
func wireMigrations(cfg config.Config, repos Repos, submissions *submission.Repository, log *logger.Logger) (*migration.Registry, error) {
	registry := migration.NewRegistry()
	if err := registry.Register(migration.StudentProgressName, func() migration.Migration {
		return migration.NewStudentProgress(migration.ProgressDeps{
			Activity:  repos.Activity,
			Structure: repos.Structure,
			Progress:  repos.Progress,
			Options:   repos.Options,
			BatchSize: cfg.Migration.BatchSize,
			Loc:       cfg.Location(),
			Log:       log,
		})
	}); err != nil {
		return nil, err
	}
	if err := registry.Register(migration.QuizSubmissionsName, func() migration.Migration {
		return migration.NewQuizSubmissions(migration.QuizDeps{
			Activity:    repos.Activity,
			Structure:   repos.Structure,
			Submissions: submissions,
			Options:     repos.Options,
			BatchSize:   cfg.Migration.BatchSize,
			Log:         log,
		})
	}); err != nil {
		return nil, err
	}
	return registry, nil
}

func wireBus(rdb *goredis.Client, cfg config.Config, log *logger.Logger) (bus.Bus, error) {
	if rdb == nil {
		return bus.NewLocalBus(log), nil
	}
	b, err := bus.NewRedisBus(log, rdb, cfg.Redis.Channel)
	if err != nil {
		return nil, fmt.Errorf("init redis bus: %w", err)
	}
	return b, nil
}
