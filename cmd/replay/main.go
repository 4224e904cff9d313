package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	persistlog "envoy.ai/internal/persistence/log"
	"envoy.ai/internal/sim/session"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		auditDir = flag.String("audit", "", "audit dir containing treaties-*.jsonl.zst (default: <data>/audit)")
		file     = flag.String("file", "", "read a single .jsonl.zst file instead of a directory")
		treaty   = flag.String("treaty", "", "only show this treaty id")
		player   = flag.Int("player", 0, "only show treaties this player took part in")
		asJSON   = flag.Bool("json", false, "print matching records as JSON lines")
	)
	flag.Parse()

	var (
		recs []session.TreatyRecord
		err  error
	)
	if *file != "" {
		recs, err = persistlog.ReadTreatyFile(*file)
	} else {
		dir := *auditDir
		if dir == "" {
			dir = persistlog.AuditDir(*dataDir)
		}
		recs, err = persistlog.ReadTreatyDir(dir)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit log:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no treaty records found")
		os.Exit(1)
	}

	recs = filterRecords(recs, *treaty, *player)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range recs {
			_ = enc.Encode(r)
		}
		return
	}
	printTimelines(os.Stdout, recs)
}

func filterRecords(recs []session.TreatyRecord, treatyID string, player int) []session.TreatyRecord {
	if treatyID == "" && player == 0 {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if treatyID != "" && r.TreatyID != treatyID {
			continue
		}
		if player != 0 && r.P0 != player && r.P1 != player {
			continue
		}
		out = append(out, r)
	}
	return out
}

type timeline struct {
	id      string
	p0, p1  int
	records []session.TreatyRecord
}

// groupTimelines keeps treaties in the order they were opened. Records with
// no treaty id (events, cease-fire expiry, elimination) form their own group.
func groupTimelines(recs []session.TreatyRecord) []*timeline {
	var (
		order []*timeline
		byID  = map[string]*timeline{}
	)
	for _, r := range recs {
		id := r.TreatyID
		tl := byID[id]
		if tl == nil {
			tl = &timeline{id: id, p0: r.P0, p1: r.P1}
			byID[id] = tl
			order = append(order, tl)
		}
		tl.records = append(tl.records, r)
	}
	return order
}

func printTimelines(w io.Writer, recs []session.TreatyRecord) {
	var finalized, failed, cancelled, open int
	for _, tl := range groupTimelines(recs) {
		if tl.id == "" {
			fmt.Fprintf(w, "game events\n")
		} else {
			fmt.Fprintf(w, "treaty %s players %d/%d\n", tl.id, tl.p0, tl.p1)
		}
		closed := false
		for _, r := range tl.records {
			fmt.Fprintf(w, "  %s turn=%d %s\n", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Turn, describe(r))
			switch r.Kind {
			case session.RecordFinalized:
				finalized++
				closed = true
			case session.RecordFailed:
				failed++
				closed = true
			case session.RecordCancelled:
				cancelled++
				closed = true
			}
		}
		if tl.id != "" && !closed {
			open++
		}
	}
	fmt.Fprintf(w, "summary: finalized=%d failed=%d cancelled=%d open=%d records=%d\n", finalized, failed, cancelled, open, len(recs))
}

func describe(r session.TreatyRecord) string {
	switch r.Kind {
	case session.RecordOpened:
		return fmt.Sprintf("OPENED by %d", r.Actor)
	case session.RecordClauseAdded, session.RecordClauseRemoved:
		return fmt.Sprintf("%s %s", r.Kind, clauseList(r.Clauses))
	case session.RecordAccept:
		return fmt.Sprintf("ACCEPT player=%d accepted=%t", r.Actor, r.Accepted)
	case session.RecordRejected:
		return fmt.Sprintf("REJECTED player=%d %s (%s) %s", r.Actor, r.Code, r.Reason, clauseList(r.Clauses))
	case session.RecordFinalized:
		return fmt.Sprintf("FINALIZED by %d: %s", r.Actor, clauseList(r.Clauses))
	case session.RecordFailed:
		return fmt.Sprintf("FAILED %s (%s) %s", r.Code, r.Reason, clauseList(r.Clauses))
	case session.RecordCancelled:
		return fmt.Sprintf("CANCELLED by %d", r.Actor)
	case session.RecordEvent:
		return fmt.Sprintf("EVENT %s: %s", r.Event, r.Text)
	case session.RecordCeaseFireExpired:
		return fmt.Sprintf("CEASEFIRE_EXPIRED %d/%d", r.P0, r.P1)
	case session.RecordEliminated:
		return fmt.Sprintf("ELIMINATED %d", r.P0)
	}
	return string(r.Kind)
}

func clauseList(cs []session.ClauseRecord) string {
	if len(cs) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		s := fmt.Sprintf("%d:%s", c.Giver, c.Kind)
		if c.Value != 0 {
			s += fmt.Sprintf("=%d", c.Value)
		}
		if c.Skip != "" {
			s += " skipped(" + c.Skip + ")"
		}
		parts = append(parts, s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
