package session

import (
	"log"

	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// LogAdvisor stands in for an AI strategy module: it only logs what an AI
// player was shown and agreed to.
type LogAdvisor struct {
	Logger *log.Logger
}

func (a LogAdvisor) TreatyEvaluate(self, other model.PlayerID, t *treaty.Treaty) {
	if a.Logger == nil {
		return
	}
	a.Logger.Printf("ai %d evaluates treaty %s with %d: %d clauses", self, t.ID, other, len(t.Clauses))
}

func (a LogAdvisor) TreatyAccepted(self, other model.PlayerID, t *treaty.Treaty) {
	if a.Logger == nil {
		return
	}
	a.Logger.Printf("ai %d accepted treaty %s with %d", self, t.ID, other)
}
