package server

import (
	"net/http"

	"github.com/jackzampolin/wenshape/internal/model"
)

// registerVolumeRoutes implements spec.md §6.2's Volumes group: CRUD plus
// the volume summary accessor and a derived stats endpoint, plus a
// chapter-reorder-within-volume endpoint (writes ChapterSummary's
// OrderIndex).
func (s *Server) registerVolumeRoutes(mux *http.ServeMux) {
	handle(mux, "GET", "/projects/{project}/volumes", s.listVolumes)
	handle(mux, "POST", "/projects/{project}/volumes", s.createVolume)
	handle(mux, "GET", "/projects/{project}/volumes/{vid}", s.getVolume)
	handle(mux, "PUT", "/projects/{project}/volumes/{vid}", s.putVolume)

	handle(mux, "GET", "/projects/{project}/volumes/{vid}/summary", s.getVolumeSummary)
	handle(mux, "PUT", "/projects/{project}/volumes/{vid}/summary", s.putVolumeSummary)
	handle(mux, "GET", "/projects/{project}/volumes/{vid}/stats", s.getVolumeStats)

	handle(mux, "PATCH", "/projects/{project}/volumes/{vid}/chapters/{chapter}/order", s.reorderChapter)
}

func (s *Server) listVolumes(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	volumes, err := svc.Store.ListVolumes()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, volumes)
}

func (s *Server) createVolume(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var v model.Volume
	if !decodeJSON(w, r, &v) {
		return
	}
	if err := svc.Store.SaveVolume(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getVolume(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := svc.Store.LoadVolume(pathValue(r, "vid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) putVolume(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var v model.Volume
	if !decodeJSON(w, r, &v) {
		return
	}
	v.ID = pathValue(r, "vid")
	if err := svc.Store.SaveVolume(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getVolumeSummary(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := svc.Store.LoadVolumeSummary(pathValue(r, "vid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) putVolumeSummary(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var summary model.VolumeSummary
	if !decodeJSON(w, r, &summary) {
		return
	}
	summary.VolumeID = pathValue(r, "vid")
	if err := svc.Store.SaveVolumeSummary(r.Context(), summary); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// volumeStats is a derived rollup over a volume's chapter summaries:
// spec.md doesn't fix its exact shape, so this reports the counts and
// totals a writer dashboard would want (chapter count, total word count,
// open loop count) rather than persisting a redundant stats artifact.
type volumeStats struct {
	VolumeID       string `json:"volume_id"`
	ChapterCount   int    `json:"chapter_count"`
	TotalWordCount int    `json:"total_word_count"`
	OpenLoopCount  int    `json:"open_loop_count"`
}

func (s *Server) getVolumeStats(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	vid := pathValue(r, "vid")
	summaries, err := svc.Store.ListChapterSummaries()
	if err != nil {
		writeError(w, err)
		return
	}
	stats := volumeStats{VolumeID: vid}
	for _, sum := range summaries {
		if sum.VolumeID != vid {
			continue
		}
		stats.ChapterCount++
		stats.TotalWordCount += sum.WordCount
		stats.OpenLoopCount += len(sum.OpenLoops)
	}
	writeJSON(w, http.StatusOK, stats)
}

type reorderRequest struct {
	OrderIndex int `json:"order_index"`
}

func (s *Server) reorderChapter(w http.ResponseWriter, r *http.Request) {
	svc, err := s.projects.Get(pathValue(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	chapter := pathValue(r, "chapter")
	sum, err := svc.Store.LoadChapterSummary(chapter)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sum.Chapter = chapter
	sum.VolumeID = pathValue(r, "vid")
	idx := req.OrderIndex
	sum.OrderIndex = &idx
	if err := svc.Store.SaveChapterSummary(r.Context(), sum); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
