package app

import (
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/config"
	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	jobsrepo "github.com/yungbote/lms-progress/internal/data/repos/jobs"
	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type Repos struct {
	Activity        activity.Repo
	Structure       structure.Repo
	Progress        tablesrepo.ProgressRepo
	QuizSubmission  tablesrepo.QuizSubmissionRepo
	ScheduledAction jobsrepo.ScheduledActionRepo
	Options         options.Store
}

func wireRepos(db *gorm.DB, rdb *goredis.Client, cfg config.Config, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	var opts options.Store
	switch cfg.Options.Backend {
	case "redis":
		opts = options.NewRedisStore(rdb, cfg.Redis.Prefix, log)
	default:
		opts = options.NewGormStore(db, log)
	}
	return Repos{
		Activity:        activity.NewRepo(db, log),
		Structure:       structure.NewRepo(db, log),
		Progress:        tablesrepo.NewProgressRepo(db, log),
		QuizSubmission:  tablesrepo.NewQuizSubmissionRepo(db, log),
		ScheduledAction: jobsrepo.NewScheduledActionRepo(db, log),
		Options:         opts,
	}
}
