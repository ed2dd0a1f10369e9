package server

import (
	"net/http"
	"strings"
)

// registerFactsTreeRoutes implements spec.md §6.2's Facts Tree group: an
// aggregated, deduplicated view over canon/facts.jsonl and the facts
// chapter summaries imply, grouped by volume then chapter.
func (s *Server) registerFactsTreeRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/projects/{project}/facts/tree", s.getFactsTree)
}

// factsTreeChapter groups one chapter's facts, whether persisted directly
// to canon/facts.jsonl or only implied by its chapter summary's new_facts.
type factsTreeChapter struct {
	Chapter string   `json:"chapter"`
	Facts   []string `json:"facts"`
}

type factsTreeVolume struct {
	VolumeID string             `json:"volume_id"`
	Chapters []factsTreeChapter `json:"chapters"`
}

// getFactsTree builds the aggregated tree: every canon.Fact groups under
// its IntroducedIn chapter; every summary.NewFacts entry is merged in
// unless a canon fact already carries the same SummaryRef or an
// equivalent normalized statement, per spec.md's "dedup against
// summary-derived facts via summary_ref/normalized-statement matching".
func (s *Server) getFactsTree(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	facts, err := svc.Store.LoadFacts()
	if err != nil {
		writeError(w, err)
		return
	}
	summaries, err := svc.Store.ListChapterSummaries()
	if err != nil {
		writeError(w, err)
		return
	}

	byChapter := make(map[string][]string)
	seenStatements := make(map[string]map[string]bool) // chapter -> normalized statement -> seen
	seenRefs := make(map[string]bool)

	addFact := func(chapter, statement, ref string) {
		norm := normalizeStatement(statement)
		if norm == "" {
			return
		}
		if ref != "" && seenRefs[ref] {
			return
		}
		if seenStatements[chapter] == nil {
			seenStatements[chapter] = make(map[string]bool)
		}
		if seenStatements[chapter][norm] {
			return
		}
		seenStatements[chapter][norm] = true
		if ref != "" {
			seenRefs[ref] = true
		}
		byChapter[chapter] = append(byChapter[chapter], statement)
	}

	for _, f := range facts {
		addFact(f.IntroducedIn, f.Statement, f.SummaryRef)
	}
	for _, sum := range summaries {
		for _, nf := range sum.NewFacts {
			addFact(sum.Chapter, nf, "")
		}
	}

	volumeOf := make(map[string]string, len(summaries))
	for _, sum := range summaries {
		volumeOf[sum.Chapter] = sum.VolumeID
	}

	volumes := make(map[string]*factsTreeVolume)
	var order []string
	for chapter, chFacts := range byChapter {
		vid := volumeOf[chapter]
		v, ok := volumes[vid]
		if !ok {
			v = &factsTreeVolume{VolumeID: vid}
			volumes[vid] = v
			order = append(order, vid)
		}
		v.Chapters = append(v.Chapters, factsTreeChapter{Chapter: chapter, Facts: chFacts})
	}

	out := make([]factsTreeVolume, 0, len(order))
	for _, vid := range order {
		out = append(out, *volumes[vid])
	}
	writeJSON(w, http.StatusOK, out)
}

func normalizeStatement(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
