package graph

import (
	"context"
	"sort"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// Bisect is a supplemented feature (§4 SUPPLEMENTED FEATURES, grounded in
// original_source/src/bisect.c): a persisted good/bad commit-interval
// state machine built on top of ShortestPath/Ancestors, driving the CLI's
// `bisect bad|good|next|reset|vlist` subcommands. State survives process
// restarts in the `bilog` table.
const bisectSchemaDDL = `
CREATE TABLE IF NOT EXISTS bilog (
	rid    INTEGER PRIMARY KEY,
	status TEXT NOT NULL -- 'bad' or 'good'
);
`

// EnsureSchema bootstraps the bilog table. Called once by internal/repo
// alongside the rest of the schema.
func EnsureSchema(db DB) error {
	_, err := db.ExecContext(context.Background(), bisectSchemaDDL)
	return err
}

// BisectMark records rid as known-bad or known-good.
func BisectMark(ctx context.Context, db DB, rid int64, bad bool) error {
	status := "good"
	if bad {
		status = "bad"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO bilog(rid, status) VALUES (?, ?)
		ON CONFLICT(rid) DO UPDATE SET status = excluded.status`, rid, status)
	return err
}

// BisectReset clears all bisect state.
func BisectReset(ctx context.Context, db DB) error {
	_, err := db.ExecContext(ctx, `DELETE FROM bilog`)
	return err
}

// BisectMarks returns every currently-marked rid and whether each is bad.
func BisectMarks(ctx context.Context, db DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT rid, status FROM bilog`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var rid int64
		var status string
		if err := rows.Scan(&rid, &status); err != nil {
			return nil, err
		}
		out[rid] = status == "bad"
	}
	return out, rows.Err()
}

// BisectNext computes the next commit to test: the ancestor/descendant
// set strictly between the known-bad and known-good marks, binary-
// searched by shortest distance from the bad endpoint, breaking ties by
// ascending rid (matching Pivot's tie-break). Returns a CategoryUsage
// error if no bad/good pair is marked yet, and errs.NotFound if the
// interval is already empty (bisection complete).
func BisectNext(ctx context.Context, db DB) (int64, error) {
	marks, err := BisectMarks(ctx, db)
	if err != nil {
		return 0, err
	}
	var bad, good int64
	var haveBad, haveGood bool
	for rid, isBad := range marks {
		if isBad {
			bad, haveBad = rid, true
		} else {
			good, haveGood = rid, true
		}
	}
	if !haveBad || !haveGood {
		return 0, errs.New(errs.CategoryUsage, "bisect requires both a bad and a good mark")
	}

	candidates, err := BisectCandidates(ctx, db, bad, good, marks)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, errs.NotFound("bisect interval is empty; bad and good are adjacent")
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].rid < candidates[j].rid
	})
	// Choose the candidate nearest the midpoint of the interval (by
	// distance from bad), so each test roughly halves the remaining range.
	mid := len(candidates) / 2
	return candidates[mid].rid, nil
}

type bisectCandidate struct {
	rid      int64
	distance int
}

// BisectCandidates returns every commit known to lie between bad and good
// (descendants of good that are also ancestors of bad, per the usual
// Fossil bisect convention where bad is later than good) excluding marks
// already tested, annotated with distance from bad along the ancestor
// walk.
func BisectCandidates(ctx context.Context, db DB, bad, good int64, marks map[int64]bool) ([]bisectCandidate, error) {
	ancestorsOfBad, err := Ancestors(ctx, db, bad, true)
	if err != nil {
		return nil, err
	}
	descOfGood, err := Descendants(ctx, db, good, true)
	if err != nil {
		return nil, err
	}
	inDesc := make(map[int64]bool, len(descOfGood))
	for _, rid := range descOfGood {
		inDesc[rid] = true
	}
	distFromBad := make(map[int64]int, len(ancestorsOfBad))
	for i, rid := range ancestorsOfBad {
		distFromBad[rid] = i + 1
	}

	var out []bisectCandidate
	for _, rid := range ancestorsOfBad {
		if rid == good || rid == bad {
			continue
		}
		if !inDesc[rid] {
			continue
		}
		if _, tested := marks[rid]; tested {
			continue
		}
		out = append(out, bisectCandidate{rid: rid, distance: distFromBad[rid]})
	}
	return out, nil
}

// BisectVListEntry is one row of BisectVList's output. Marked is true if
// the rid was marked (Bad then says whether it was marked bad);
// otherwise it is an untested candidate.
type BisectVListEntry struct {
	Rid    int64
	Marked bool
	Bad    bool
}

// BisectVList returns every commit in the current bad/good interval
// along with its tested status, for the `bisect vlist` subcommand.
func BisectVList(ctx context.Context, db DB) ([]BisectVListEntry, error) {
	marks, err := BisectMarks(ctx, db)
	if err != nil {
		return nil, err
	}
	var bad, good int64
	var haveBad, haveGood bool
	for rid, isBad := range marks {
		if isBad {
			bad, haveBad = rid, true
		} else {
			good, haveGood = rid, true
		}
	}
	if !haveBad || !haveGood {
		return nil, errs.New(errs.CategoryUsage, "bisect requires both a bad and a good mark")
	}

	candidates, err := BisectCandidates(ctx, db, bad, good, marks)
	if err != nil {
		return nil, err
	}
	out := []BisectVListEntry{{Rid: bad, Marked: true, Bad: true}, {Rid: good, Marked: true, Bad: false}}
	for _, c := range candidates {
		out = append(out, BisectVListEntry{Rid: c.rid})
	}
	return out, nil
}
