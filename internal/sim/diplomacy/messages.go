package diplomacy

import (
	"fmt"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy/execution"
	"envoy.ai/internal/sim/diplomacy/validation"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

func meetingMsg(typ string, counterpart, initiatedFrom model.PlayerID) protocol.MeetingMsg {
	return protocol.MeetingMsg{
		Type:            typ,
		ProtocolVersion: protocol.Version,
		Counterpart:     int(counterpart),
		InitiatedFrom:   int(initiatedFrom),
	}
}

func clauseMsg(typ string, counterpart model.PlayerID, c treaty.Clause) protocol.ClauseMsg {
	return protocol.ClauseMsg{
		Type:            typ,
		ProtocolVersion: protocol.Version,
		Counterpart:     int(counterpart),
		Giver:           int(c.From),
		Kind:            string(c.Kind()),
		Value:           treaty.Value(c.Term),
	}
}

func acceptMsg(counterpart model.PlayerID, self, other bool) protocol.AcceptMsg {
	return protocol.AcceptMsg{
		Type:            protocol.TypeAcceptTreaty,
		ProtocolVersion: protocol.Version,
		Counterpart:     int(counterpart),
		SelfAccepted:    self,
		OtherAccepted:   other,
	}
}

func notifyMsg(event string, pos *model.Pos, text string) protocol.NotifyMsg {
	m := protocol.NotifyMsg{
		Type:            protocol.TypeNotify,
		ProtocolVersion: protocol.Version,
		Event:           event,
		Text:            text,
	}
	if pos != nil {
		m.Pos = &protocol.Pos{X: pos.X, Y: pos.Y}
	}
	return m
}

// ClauseFromRequest converts a wire clause into a typed clause.
func ClauseFromRequest(req protocol.ClauseReq) (treaty.Clause, error) {
	term, err := treaty.NewTerm(treaty.Kind(req.Kind), req.Value)
	if err != nil {
		return treaty.Clause{}, err
	}
	return treaty.Clause{From: model.PlayerID(req.Giver), Term: term}, nil
}

func treatyAgreedText(n int) string {
	if n == 1 {
		return "A treaty containing 1 clause was agreed upon."
	}
	return fmt.Sprintf("A treaty containing %d clauses was agreed upon.", n)
}

// acceptRefusal is told to a player whose own promise cannot be kept.
func (s *Service) acceptRefusal(player, other model.PlayerID, v validation.Verdict) string {
	otherName := s.world.PlayerName(other)
	switch v.Reason {
	case validation.ReasonTechUnreachable:
		return fmt.Sprintf("The %s can't accept %s.", s.world.NationPlural(other), s.techName(v.Clause))
	case validation.ReasonTechUnknown:
		return fmt.Sprintf("You don't have tech %s, you can't accept treaty.", s.techName(v.Clause))
	case validation.ReasonCityGone:
		return "City you are trying to give no longer exists, you can't accept treaty."
	case validation.ReasonCityNotOwned:
		return fmt.Sprintf("You are not owner of %s, you can't accept treaty.", v.City.Name)
	case validation.ReasonCapital:
		return fmt.Sprintf("Your capital (%s) is requested, you can't accept treaty.", v.City.Name)
	case validation.ReasonOriginAllyAtWar:
		return fmt.Sprintf("You are at war with one of %s's allies - an alliance with %s is impossible.", otherName, otherName)
	case validation.ReasonDestAllyAtWar:
		return fmt.Sprintf("%s is at war with one of your allies - an alliance with %s is impossible.", otherName, otherName)
	case validation.ReasonInsufficientGold:
		return "You don't have enough gold, you can't accept treaty."
	case validation.ReasonNoCommonTeam:
		return fmt.Sprintf("You are not on the same team as %s, you can't accept treaty.", otherName)
	default:
		return "You can't accept treaty."
	}
}

// finalizeRefusal is told to both sides when the earlier accepter can no
// longer keep its promise. other is that earlier accepter.
func (s *Service) finalizeRefusal(trigger, other model.PlayerID, v validation.Verdict) string {
	plural := s.world.NationPlural(other)
	switch v.Reason {
	case validation.ReasonTechUnreachable:
		return fmt.Sprintf("The %s can't accept %s! Treaty canceled!", s.world.NationPlural(trigger), s.techName(v.Clause))
	case validation.ReasonTechUnknown:
		return fmt.Sprintf("The %s no longer know %s! Treaty canceled!", plural, s.techName(v.Clause))
	case validation.ReasonCityGone:
		return fmt.Sprintf("One of the cities %s is giving away is destroyed! Treaty canceled!", plural)
	case validation.ReasonCityNotOwned:
		return fmt.Sprintf("The %s no longer control %s! Treaty canceled!", plural, v.City.Name)
	case validation.ReasonCapital:
		return fmt.Sprintf("The capital of the %s (%s) is requested! Treaty canceled!", plural, v.City.Name)
	case validation.ReasonOriginAllyAtWar, validation.ReasonDestAllyAtWar:
		return fmt.Sprintf("%s and %s are at war with each other's allies - an alliance is impossible. Treaty canceled!",
			s.world.PlayerName(other), s.world.PlayerName(trigger))
	case validation.ReasonInsufficientGold:
		return fmt.Sprintf("The %s don't have the promised amount of gold! Treaty canceled!", plural)
	case validation.ReasonNoCommonTeam:
		return fmt.Sprintf("The %s are not on the same team as the %s! Treaty canceled!", plural, s.world.NationPlural(trigger))
	default:
		return "Treaty canceled!"
	}
}

func (s *Service) techName(c treaty.Clause) string {
	if t, ok := c.Term.(treaty.TechTransfer); ok {
		return s.world.TechName(t.Tech)
	}
	return "?"
}

// announce tells both participants and every embassy holder what a clause did.
func (s *Service) announce(o execution.Outcome) {
	giver, dest := o.Giver, o.Dest
	gName, dName := s.world.PlayerName(giver), s.world.PlayerName(dest)
	gPlural, dPlural := s.world.NationPlural(giver), s.world.NationPlural(dest)

	var embassy, logText string
	switch term := o.Clause.Term.(type) {
	case treaty.TechTransfer:
		tech := s.world.TechName(term.Tech)
		s.notify(dest, model.EventTechGain, nil, fmt.Sprintf("You are taught the knowledge of %s.", tech))
		embassy = fmt.Sprintf("The %s have acquired %s from the %s.", dPlural, tech, gPlural)
		logText = fmt.Sprintf("%s acquire %s (Treaty) from %s", dPlural, tech, gPlural)
	case treaty.Gold:
		s.notify(dest, model.EventDiplomacy, nil, fmt.Sprintf("You get %d gold.", term.Amount))
		embassy = fmt.Sprintf("The %s have given %d gold to the %s.", gPlural, term.Amount, dPlural)
		logText = fmt.Sprintf("%s acquire %d gold from %s", dPlural, term.Amount, gPlural)
	case treaty.WorldMap:
		s.notify(dest, model.EventDiplomacy, nil, fmt.Sprintf("You receive %s's worldmap.", gName))
		embassy = fmt.Sprintf("The %s have shared their worldmap with the %s.", gPlural, dPlural)
	case treaty.SeaMap:
		s.notify(dest, model.EventDiplomacy, nil, fmt.Sprintf("You receive %s's seamap.", gName))
		embassy = fmt.Sprintf("The %s have shared their seamap with the %s.", gPlural, dPlural)
	case treaty.CityTransfer:
		pos := o.City.Pos
		s.notify(dest, model.EventCityTransfer, &pos, fmt.Sprintf("You receive city of %s from %s.", o.City.Name, gName))
		s.notify(giver, model.EventCityLost, &pos, fmt.Sprintf("You give city of %s to %s.", o.City.Name, dName))
		embassy = fmt.Sprintf("The %s have acquired the city %s from the %s.", dPlural, o.City.Name, gPlural)
		logText = fmt.Sprintf("%s acquire the city %s from %s", dPlural, o.City.Name, gPlural)
	case treaty.CeaseFire:
		s.notifyBoth(giver, dest, model.EventCeaseFire, "You agree on a cease-fire with %s.")
		embassy = fmt.Sprintf("The %s and the %s agree on a cease-fire.", gPlural, dPlural)
	case treaty.Peace:
		s.notifyBoth(giver, dest, model.EventPeace, "You agree on a peace treaty with %s.")
		embassy = fmt.Sprintf("The %s and the %s agree on peace.", gPlural, dPlural)
	case treaty.Alliance:
		s.notifyBoth(giver, dest, model.EventAlliance, "You agree on an alliance with %s.")
		embassy = fmt.Sprintf("The %s and the %s form an alliance.", gPlural, dPlural)
		logText = fmt.Sprintf("%s agree on an alliance with %s", dPlural, gPlural)
	case treaty.TeamMerge:
		s.notifyBoth(giver, dest, model.EventAlliance, "You start a research pool with %s.")
		embassy = fmt.Sprintf("The %s and the %s pool their research.", gPlural, dPlural)
	case treaty.SharedVision:
		s.notify(giver, model.EventSharedVision, nil, fmt.Sprintf("You give shared vision to %s.", dName))
		s.notify(dest, model.EventSharedVision, nil, fmt.Sprintf("%s gives you shared vision.", gName))
		embassy = fmt.Sprintf("The %s share vision with the %s.", gPlural, dPlural)
		logText = fmt.Sprintf("%s share vision with %s", dPlural, gPlural)
	default:
		return
	}

	for _, p := range s.embassyWatchers(giver, dest) {
		s.notify(p, model.EventEmbassyReport, nil, embassy)
	}
	if logText != "" {
		s.events.Record(string(o.Clause.Kind()), []model.PlayerID{giver, dest}, logText)
	}
}

func (s *Service) notifyBoth(a, b model.PlayerID, event, format string) {
	s.notify(a, event, nil, fmt.Sprintf(format, s.world.PlayerName(b)))
	s.notify(b, event, nil, fmt.Sprintf(format, s.world.PlayerName(a)))
}

// embassyWatchers returns third parties with an embassy on a or b, each once.
func (s *Service) embassyWatchers(a, b model.PlayerID) []model.PlayerID {
	seen := map[model.PlayerID]bool{a: true, b: true}
	var out []model.PlayerID
	for _, p := range append(s.world.EmbassiesWith(a), s.world.EmbassiesWith(b)...) {
		if !seen[p] && s.world.IsAlive(p) {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
