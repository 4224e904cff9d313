package main

import (
	"bytes"
	"strings"
	"testing"

	"envoy.ai/internal/sim/session"
)

func sampleRecords() []session.TreatyRecord {
	return []session.TreatyRecord{
		{Kind: session.RecordOpened, TreatyID: "a", P0: 1, P1: 2, Actor: 1},
		{Kind: session.RecordOpened, TreatyID: "b", P0: 1, P1: 3, Actor: 3},
		{Kind: session.RecordClauseAdded, TreatyID: "a", P0: 1, P1: 2, Clauses: []session.ClauseRecord{{Giver: 1, Kind: "GOLD", Value: 10}}},
		{Kind: session.RecordCeaseFireExpired, P0: 2, P1: 3},
		{Kind: session.RecordFinalized, TreatyID: "a", P0: 1, P1: 2, Actor: 2, Clauses: []session.ClauseRecord{{Giver: 1, Kind: "GOLD", Value: 10, Applied: true}}},
	}
}

func TestGroupTimelines_KeepsOpenOrder(t *testing.T) {
	tls := groupTimelines(sampleRecords())
	if len(tls) != 3 {
		t.Fatalf("timelines = %d", len(tls))
	}
	if tls[0].id != "a" || len(tls[0].records) != 3 {
		t.Fatalf("first = %+v", tls[0])
	}
	if tls[1].id != "b" || tls[2].id != "" {
		t.Fatalf("order = %s, %s", tls[1].id, tls[2].id)
	}
}

func TestFilterRecords(t *testing.T) {
	if got := filterRecords(sampleRecords(), "a", 0); len(got) != 3 {
		t.Fatalf("by treaty = %d", len(got))
	}
	if got := filterRecords(sampleRecords(), "", 3); len(got) != 2 {
		t.Fatalf("by player = %d", len(got))
	}
	if got := filterRecords(sampleRecords(), "", 0); len(got) != 5 {
		t.Fatalf("unfiltered = %d", len(got))
	}
}

func TestPrintTimelines_Summary(t *testing.T) {
	var buf bytes.Buffer
	printTimelines(&buf, sampleRecords())
	out := buf.String()
	if !strings.Contains(out, "FINALIZED by 2: [1:GOLD=10]") {
		t.Fatalf("missing finalize line:\n%s", out)
	}
	if !strings.Contains(out, "summary: finalized=1 failed=0 cancelled=0 open=1 records=5") {
		t.Fatalf("summary:\n%s", out)
	}
}
