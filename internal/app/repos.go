package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type Repos struct {
	Caregiver    repos.CaregiverRepo
	Child        repos.ChildRepo
	NeuroProfile repos.NeuroProfileRepo
	Disability   repos.DisabilityRepo
	Session      repos.SessionRepo
	Interaction  repos.InteractionRepo
	Signal       repos.SignalRepo
	State        repos.StateRepo
	Mastery      repos.MasteryRepo
	Chunk        repos.ChunkRepo
	Tx           repos.TxRunner
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Caregiver:    repos.NewCaregiverRepo(db, log),
		Child:        repos.NewChildRepo(db, log),
		NeuroProfile: repos.NewNeuroProfileRepo(db, log),
		Disability:   repos.NewDisabilityRepo(db, log),
		Session:      repos.NewSessionRepo(db, log),
		Interaction:  repos.NewInteractionRepo(db, log),
		Signal:       repos.NewSignalRepo(db, log),
		State:        repos.NewStateRepo(db, log),
		Mastery:      repos.NewMasteryRepo(db, log),
		Chunk:        repos.NewChunkRepo(db, log),
		Tx:           repos.NewTxRunner(db),
	}
}
