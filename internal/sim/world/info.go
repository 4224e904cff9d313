package world

import (
	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/model"
)

// PlayerInfo is the public state of p as sent to clients after a treaty.
func (w *World) PlayerInfo(p model.PlayerID) protocol.PlayerInfoMsg {
	pl := w.player(p)
	msg := protocol.PlayerInfoMsg{
		Type:            protocol.TypePlayerInfo,
		ProtocolVersion: protocol.Version,
		PlayerID:        int(p),
		Techs:           []int{},
		Cities:          []int{},
		Relations:       []protocol.RelationInfo{},
	}
	if pl == nil {
		return msg
	}
	msg.Name = pl.Name
	msg.Nation = pl.Nation
	msg.Alive = pl.Alive
	msg.Gold = pl.Gold
	msg.Team = int(pl.Team)
	msg.Researching = int(pl.Research.Researching)
	msg.TechGoal = int(pl.Research.TechGoal)
	msg.Bulbs = pl.Research.BulbsResearched
	for _, t := range w.KnownTechs(p) {
		msg.Techs = append(msg.Techs, int(t))
	}
	for _, c := range w.CitiesOf(p) {
		msg.Cities = append(msg.Cities, int(c.ID))
	}
	for _, o := range w.order {
		if o == p {
			continue
		}
		r := w.Relation(p, o)
		msg.Relations = append(msg.Relations, protocol.RelationInfo{
			PlayerID:     int(o),
			State:        string(r.State),
			TurnsLeft:    r.TurnsLeft,
			HasEmbassy:   pl.embassy[o],
			SharedVision: pl.vision[o],
		})
	}
	return msg
}
