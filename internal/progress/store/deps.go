package store

import (
	"time"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Deps is what every progress repository factory is built from.
type Deps struct {
	Activity  activity.Repo
	Structure structure.Repo
	Tables    tablesrepo.ProgressRepo
	Loc       *time.Location
	// UseTables enables dual-write into the progress tables.
	UseTables bool
	Log       *logger.Logger
}

func (d Deps) Location() *time.Location {
	if d.Loc == nil {
		return time.UTC
	}
	return d.Loc
}

func (d Deps) Comments(log *logger.Logger) *Comments {
	return &Comments{Activity: d.Activity, Loc: d.Location(), Log: log}
}

func (d Deps) TablesStore() *Tables {
	return &Tables{Progress: d.Tables, Loc: d.Location()}
}
