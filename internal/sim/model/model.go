package model

import "fmt"

type PlayerID int

type TechID int

type CityID int

// TeamID 0 means the player is not on a formal team.
type TeamID int

const TeamNone TeamID = 0

// TechNone marks an empty research target or goal.
const TechNone TechID = 0

type DiplState string

const (
	DiplNoContact DiplState = "NO_CONTACT"
	DiplWar       DiplState = "WAR"
	DiplCeaseFire DiplState = "CEASEFIRE"
	DiplPeace     DiplState = "PEACE"
	DiplAlliance  DiplState = "ALLIANCE"
	DiplTeam      DiplState = "TEAM"
)

func ParseDiplState(s string) (DiplState, error) {
	switch DiplState(s) {
	case DiplNoContact, DiplWar, DiplCeaseFire, DiplPeace, DiplAlliance, DiplTeam:
		return DiplState(s), nil
	default:
		return "", fmt.Errorf("unknown diplomatic state %q", s)
	}
}

// Relation is one directed row of the diplomatic-state matrix.
type Relation struct {
	State DiplState
	// TurnsLeft counts down an active cease-fire.
	TurnsLeft int
	// ContactTurnsLeft > 0 lets the two players meet without an embassy.
	ContactTurnsLeft int
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type City struct {
	ID      CityID
	Name    string
	Owner   PlayerID
	Pos     Pos
	Capital bool
}

// Research holds a player's in-progress research counters.
type Research struct {
	BulbsResearched int
	BulbsBefore     int
	Researching     TechID
	ChangedFrom     TechID
	TechGoal        TechID
}

// Event kinds attached to player notices.
const (
	EventDiplomacy     = "E_DIPLOMACY"
	EventTreatyBroken  = "E_TREATY_BROKEN"
	EventTechGain      = "E_TECH_GAIN"
	EventCityTransfer  = "E_CITY_TRANSFER"
	EventCityLost      = "E_CITY_LOST"
	EventCeaseFire     = "E_TREATY_CEASEFIRE"
	EventPeace         = "E_TREATY_PEACE"
	EventAlliance      = "E_TREATY_ALLIANCE"
	EventSharedVision  = "E_TREATY_SHARED_VISION"
	EventEmbassyReport = "E_EMBASSY_REPORT"
	EventMeetingEnded  = "E_MEETING_ENDED"
)
