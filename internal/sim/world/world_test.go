package world

import (
	"path/filepath"
	"testing"

	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/scenario"
)

func loadWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	sc, err := scenario.Load(filepath.Join("..", "..", "..", "configs", "scenario.yaml"))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	w, err := New(cfg, sc)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func TestNew_FromScenario(t *testing.T) {
	w := loadWorld(t, Config{})
	if got := len(w.Players()); got != 4 {
		t.Fatalf("players=%d", got)
	}
	if w.Gold(1) != 150 || w.Team(2) != 1 || !w.IsBarbarian(4) || !w.IsAI(3) {
		t.Fatalf("player fields not loaded")
	}
	if !w.KnowsTech(1, 4) || w.KnowsTech(1, 3) {
		t.Fatalf("techs not loaded")
	}
	if r := w.Relation(2, 3); r.State != model.DiplCeaseFire || r.TurnsLeft != 8 {
		t.Fatalf("relation 2-3: %+v", r)
	}
	if w.Relation(3, 4).State != model.DiplNoContact {
		t.Fatalf("unlisted pairs start without contact")
	}
	if !w.MapKnows(1, model.Pos{X: 3, Y: 2}) || w.MapKnows(1, model.Pos{X: 11, Y: 2}) {
		t.Fatalf("initial map knowledge wrong")
	}
}

func TestCouldMeet(t *testing.T) {
	w := loadWorld(t, Config{})
	if !w.CouldMeet(1, 2) {
		t.Fatalf("embassy holders must be able to meet")
	}
	if !w.CouldMeet(3, 1) {
		t.Fatalf("contact must allow a meeting")
	}
	if w.CouldMeet(3, 4) {
		t.Fatalf("no contact and no embassy must not meet")
	}
	if w.CouldMeet(1, 1) {
		t.Fatalf("a player cannot meet itself")
	}
	w.Eliminate(2)
	if w.CouldMeet(1, 2) {
		t.Fatalf("dead players cannot meet")
	}
}

func TestCanAlly(t *testing.T) {
	w := loadWorld(t, Config{})
	// 1 is at war with 3; 3 has no allies yet.
	if !w.CanAlly(1, 2) {
		t.Fatalf("expected 1 can ally 2")
	}
	w.SetRelation(2, 3, model.DiplAlliance, 0)
	if w.CanAlly(1, 2) {
		t.Fatalf("1 is at war with 2's ally 3")
	}
	if !w.CanAlly(2, 1) {
		t.Fatalf("2 is not at war with any ally of 1")
	}
	w.Eliminate(3)
	if !w.CanAlly(1, 2) {
		t.Fatalf("dead allies do not count")
	}
}

func TestTechs(t *testing.T) {
	w := loadWorld(t, Config{DiplCostPct: 25})
	if w.TechReachable(4, 9) {
		t.Fatalf("barbarians are excluded from Mysticism")
	}
	if !w.TechReachable(1, 9) {
		t.Fatalf("romans can reach Mysticism")
	}
	w.ApplyDiplomacyCost(1)
	if got := w.Research(1).BulbsResearched; got != 30 {
		t.Fatalf("bulbs after 25%% cost=%d, want 30", got)
	}
	w.GrantTech(1, 5)
	r := w.Research(1)
	if !w.KnowsTech(1, 5) || r.Researching != model.TechNone || r.ChangedFrom != 5 {
		t.Fatalf("grant of current research target: %+v", r)
	}
	w.GrantTech(1, 99)
	if w.KnowsTech(1, 99) {
		t.Fatalf("unknown tech must not be granted")
	}
}

func TestMapsAndCities(t *testing.T) {
	w := loadWorld(t, Config{})
	athens := model.Pos{X: 11, Y: 2}
	w.GiveSeaMap(2, 1)
	if w.MapKnows(1, athens) {
		t.Fatalf("sea map must not reveal land")
	}
	if !w.MapKnows(1, model.Pos{X: 11, Y: 0}) {
		t.Fatalf("sea map must reveal ocean near Athens")
	}
	w.GiveMap(2, 1)
	if !w.MapKnows(1, athens) {
		t.Fatalf("world map must reveal land")
	}

	w.TransferCity(3, 1)
	c, ok := w.City(3)
	if !ok || c.Owner != 1 || c.Capital {
		t.Fatalf("transferred city: %+v", c)
	}
	if got := len(w.CitiesOf(1)); got != 3 {
		t.Fatalf("cities of 1 = %d", got)
	}
	if !w.DestroyCity(3) {
		t.Fatalf("destroy")
	}
	if _, ok := w.City(3); ok {
		t.Fatalf("destroyed city still present")
	}
}

func TestAdvanceTurn_CeaseFireExpires(t *testing.T) {
	w := loadWorld(t, Config{})
	for i := 0; i < 7; i++ {
		if ex := w.AdvanceTurn(); len(ex) != 0 {
			t.Fatalf("turn %d: early expiry %+v", i, ex)
		}
	}
	ex := w.AdvanceTurn()
	if len(ex) != 1 || ex[0] != (Expiry{A: 2, B: 3}) {
		t.Fatalf("expected one expiry for 2-3, got %+v", ex)
	}
	if w.Relation(3, 2).State != model.DiplWar {
		t.Fatalf("expired cease-fire must return to war")
	}
	if w.Relation(1, 3).ContactTurnsLeft != 2 {
		t.Fatalf("contact=%d", w.Relation(1, 3).ContactTurnsLeft)
	}
}

func TestEmbassiesWithAndInfo(t *testing.T) {
	w := loadWorld(t, Config{})
	got := w.EmbassiesWith(3)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("embassies with 3: %v", got)
	}
	info := w.PlayerInfo(1)
	if info.Name != "Caesar" || info.Gold != 150 || len(info.Techs) != 3 || len(info.Relations) != 3 {
		t.Fatalf("player info: %+v", info)
	}
	if !w.Authenticate(1, "rome-secret") || w.Authenticate(1, "nope") || !w.Authenticate(3, "") {
		t.Fatalf("authenticate")
	}
}

func TestMakeContact_ReopensWindow(t *testing.T) {
	w := loadWorld(t, Config{ContactTurns: 3})
	for i := 0; i < 10; i++ {
		w.AdvanceTurn()
	}
	if w.CouldMeet(1, 3) {
		t.Fatalf("contact window must have closed")
	}
	if !w.MakeContact(3, 1) {
		t.Fatalf("make contact failed")
	}
	if !w.CouldMeet(1, 3) || w.Relation(1, 3).ContactTurnsLeft != 3 {
		t.Fatalf("contact not restored: %+v", w.Relation(1, 3))
	}
	if w.Relation(1, 3).State != model.DiplWar {
		t.Fatalf("contact must not change an existing state")
	}

	if w.Relation(3, 4).State != model.DiplNoContact || !w.MakeContact(3, 4) {
		t.Fatalf("first contact 3-4")
	}
	if w.Relation(4, 3).State != model.DiplWar {
		t.Fatalf("first contact starts at war: %+v", w.Relation(4, 3))
	}

	if w.MakeContact(1, 1) || w.MakeContact(1, 9) {
		t.Fatalf("invalid pairs must be refused")
	}
	w.Eliminate(3)
	if w.MakeContact(1, 3) {
		t.Fatalf("dead players make no contact")
	}
}

func TestEstablishEmbassy(t *testing.T) {
	w := loadWorld(t, Config{})
	if w.HasEmbassy(3, 1) {
		t.Fatalf("3 starts without an embassy")
	}
	if !w.EstablishEmbassy(3, 1) {
		t.Fatalf("establish failed")
	}
	if !w.HasEmbassy(3, 1) || w.HasEmbassy(1, 3) {
		t.Fatalf("embassy is one-way")
	}
	if w.EstablishEmbassy(3, 1) {
		t.Fatalf("second establish must report false")
	}
	if w.EstablishEmbassy(3, 3) || w.EstablishEmbassy(3, 9) {
		t.Fatalf("invalid pairs must be refused")
	}
	got := w.EmbassiesWith(1)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("embassies with 1: %v", got)
	}
}
