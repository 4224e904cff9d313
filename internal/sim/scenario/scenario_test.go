package scenario

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoScenario(t *testing.T) {
	path := filepath.Join("..", "..", "..", "configs", "scenario.yaml")
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	if len(sc.Players) < 2 || len(sc.Techs) == 0 {
		t.Fatalf("scenario too small: %d players, %d techs", len(sc.Players), len(sc.Techs))
	}
	if len(sc.Digest) != 64 {
		t.Fatalf("digest = %q", sc.Digest)
	}
}

func TestParse_Normalizes(t *testing.T) {
	sc, err := Parse([]byte(`
players:
  - {id: 1, nation: Roman}
  - {id: 2, name: " Bo "}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Map.Width != 32 || sc.Map.Height != 32 {
		t.Fatalf("map defaults: %+v", sc.Map)
	}
	if p := sc.Players[0]; p.Name != "Player1" || p.NationPlural != "Romans" {
		t.Fatalf("player 1: %+v", p)
	}
	if p := sc.Players[1]; p.Name != "Bo" || p.Nation != "Bo" {
		t.Fatalf("player 2: %+v", p)
	}
}

func TestParse_DigestFollowsContent(t *testing.T) {
	a, err := Parse([]byte("players: [{id: 1}]\n"))
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := Parse([]byte("players: [{id: 2}]\n"))
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if a.Digest == b.Digest {
		t.Fatalf("different scenarios share digest %s", a.Digest)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name, yaml, want string
	}{
		{"dup tech", "techs: [{id: 1}, {id: 1}]", "duplicate tech"},
		{"unknown tech", "techs: [{id: 1}]\nplayers: [{id: 1, techs: [2]}]", "unknown tech"},
		{"self embassy", "players: [{id: 1, embassies: [1]}]", "bad embassy"},
		{"negative gold", "players: [{id: 1, gold: -5}]", "negative gold"},
		{"city off map", "map: {width: 4, height: 4}\nplayers: [{id: 1}]\ncities: [{id: 1, owner: 1, x: 9, y: 0}]", "off map"},
		{"city owner", "cities: [{id: 1, owner: 7}]", "unknown owner"},
		{"relation", "players: [{id: 1}]\nrelations: [{a: 1, b: 1, state: WAR}]", "bad players"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want %q", err, tc.want)
			}
		})
	}
}
