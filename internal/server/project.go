// Package server implements spec.md §6.2/§6.3's HTTP and WebSocket
// surface: one REST resource group per §6.2 bullet, dual-mounted at "/"
// and "/api/", plus the two WebSocket endpoints of §6.3.
//
// Grounded on the teacher's internal/server (http.ServeMux with Go 1.22
// method-pattern routes, withLogging/withServices middleware chain,
// graceful shutdown via http.Server.Shutdown) generalized from shelf's
// single-tenant DefraDB-backed server to wenshape's per-project,
// filesystem-backed one: every domain service in spec.md is rooted at one
// project's data directory, so this package adds a ProjectManager that
// lazily constructs and caches one bundle of services per project id,
// where the teacher constructs its (singular) DefraDB-backed services
// once at startup.
package server

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/wenshape/internal/analysis"
	"github.com/jackzampolin/wenshape/internal/binding"
	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/gateway"
	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/research"
	"github.com/jackzampolin/wenshape/internal/session"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
	"github.com/jackzampolin/wenshape/internal/trace"
)

// Agents is the narrow set of agent constructors ProjectServices needs,
// satisfied by internal/agents' Archivist/Writer/Editor/Extractor. Kept
// as an interface (rather than importing internal/agents directly) so a
// project's agents can be rebuilt with a different LLM client per
// request without this package depending on agents' construction details.
type Agents struct {
	Archivist interface {
		session.Archivist
		analysis.Archivist
	}
	Writer session.Writer
	Editor session.Editor
}

// AgentsFactory builds one project's Agents bundle from the gateway's
// resolved LLM clients. Set by cmd/wenshape at startup to
// internal/agents' constructors; left as a function value so this
// package never imports internal/agents (avoiding a dependency from the
// generic service-wiring layer onto one concrete agent implementation).
type AgentsFactory func(gw *gateway.Gateway, log *slog.Logger) Agents

// ProjectServices bundles every per-project domain service spec.md's
// components need, all rooted at one storage.Store.
type ProjectServices struct {
	ID           string
	Store        *storage.Store
	Evidence     *evidence.Indexer
	TextChunk    *textchunk.Indexer
	Binding      *binding.Service
	MemoryPack   *memorypack.Service
	Analysis     *analysis.Pipeline
	Orchestrator *session.Orchestrator
	Agents       Agents
}

// ProjectManager lazily constructs and caches one ProjectServices per
// validated project id under DataDir.
type ProjectManager struct {
	mu       sync.RWMutex
	projects map[string]*ProjectServices

	dataDir     string
	cfg         *config.Manager
	gw          *gateway.Gateway
	agents      AgentsFactory
	traceBus    *trace.Collector
	progressBus *trace.ProgressBus
	log         *slog.Logger
}

// NewProjectManager constructs an empty ProjectManager. agentsFactory may
// be nil during tests that only exercise storage-backed endpoints.
func NewProjectManager(dataDir string, cfg *config.Manager, gw *gateway.Gateway, agentsFactory AgentsFactory, traceBus *trace.Collector, progressBus *trace.ProgressBus, log *slog.Logger) *ProjectManager {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectManager{
		projects:    make(map[string]*ProjectServices),
		dataDir:     dataDir,
		cfg:         cfg,
		gw:          gw,
		agents:      agentsFactory,
		traceBus:    traceBus,
		progressBus: progressBus,
		log:         log,
	}
}

// List returns every existing project id under DataDir (one directory =
// one project, matching storage.Store's root-per-project layout).
func (pm *ProjectManager) List() ([]string, error) {
	entries, err := os.ReadDir(pm.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Create scaffolds a new project's directory layout and returns its
// services bundle.
func (pm *ProjectManager) Create(projectID string) (*ProjectServices, error) {
	svc, err := pm.buildServices(projectID)
	if err != nil {
		return nil, err
	}
	if err := svc.Store.EnsureLayout(); err != nil {
		return nil, err
	}
	pm.mu.Lock()
	pm.projects[svc.ID] = svc
	pm.mu.Unlock()
	return svc, nil
}

// Get returns the cached ProjectServices for projectID, constructing and
// caching it on first access.
func (pm *ProjectManager) Get(projectID string) (*ProjectServices, error) {
	sanitized, err := storage.SanitizeToken("project_id", projectID)
	if err != nil {
		return nil, err
	}

	pm.mu.RLock()
	svc, ok := pm.projects[sanitized]
	pm.mu.RUnlock()
	if ok {
		return svc, nil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if svc, ok := pm.projects[sanitized]; ok {
		return svc, nil
	}
	svc, err = pm.buildServices(projectID)
	if err != nil {
		return nil, err
	}
	pm.projects[svc.ID] = svc
	return svc, nil
}

// Delete removes a project's entire data directory and evicts it from
// the cache. Irreversible: callers (the /projects DELETE handler) own
// confirming this with the caller.
func (pm *ProjectManager) Delete(projectID string) error {
	sanitized, err := storage.SanitizeToken("project_id", projectID)
	if err != nil {
		return err
	}
	pm.mu.Lock()
	delete(pm.projects, sanitized)
	pm.mu.Unlock()

	root := filepath.Join(pm.dataDir, sanitized)
	return os.RemoveAll(root)
}

// buildServices wires one project's full service graph: storage at the
// bottom, evidence/text-chunk indices and binding above it, memory-pack
// and research above that, and the session orchestrator plus analysis
// pipeline at the top, exactly the dependency order spec.md's component
// table lists (C2 -> C3/C4 -> C5 -> C6/C7 -> C8 -> C9/C11).
func (pm *ProjectManager) buildServices(projectID string) (*ProjectServices, error) {
	sanitized, err := storage.SanitizeToken("project_id", projectID)
	if err != nil {
		return nil, err
	}
	store, err := storage.New(storage.Config{
		DataDir:   pm.dataDir,
		ProjectID: projectID,
		Logger:    pm.log,
	})
	if err != nil {
		return nil, err
	}

	chunks := textchunk.NewIndexer(store, textchunk.DefaultConfig(), pm.log)
	idx := evidence.New(store, chunks, pm.log)
	bindingSvc := binding.New(store, idx, pm.log)

	quotas := map[string]config.Quota{}
	if pm.cfg != nil {
		if cfg := pm.cfg.Get(); cfg != nil {
			quotas = cfg.Quotas
		}
	}
	wm := research.NewWorkingMemoryService(store, idx, bindingSvc, quotas)

	progressFn := func(evt model.ProgressEvent) {
		evt.ProjectID = sanitized
		if pm.progressBus != nil {
			pm.progressBus.Publish(evt)
		}
	}

	var agents Agents
	if pm.agents != nil {
		agents = pm.agents(pm.gw, pm.log)
	}

	var plannerLLM providers.LLMClient = providers.NewMockClient()
	if pm.gw != nil {
		plannerLLM = pm.gw.ClientForAgent("writer")
	}
	planner := research.NewLLMPlanner(plannerLLM)

	maxRounds := session.DefaultMaxResearchRounds
	if pm.cfg != nil {
		if cfg := pm.cfg.Get(); cfg != nil && cfg.MaxResearchRounds > 0 {
			maxRounds = cfg.MaxResearchRounds
		}
	}
	offline := pm.gw == nil
	loop := research.NewLoop(wm, planner, maxRounds, offline, research.ProgressFunc(progressFn))

	memPacks := memorypack.New(store, func(ctx context.Context, chapter, goalText string, brief model.SceneBrief, force bool) (model.MemoryPackPayload, error) {
		return loop.Run(ctx, goalText, brief, nil, plannerLLM)
	}, memorypack.ProgressFunc(progressFn), pm.log)

	var analyzer *analysis.Pipeline
	if agents.Archivist != nil {
		analyzer = analysis.New(store, bindingSvc, agents.Archivist, progressFn, pm.log)
	}

	orchestrator := session.New(store, memPacks, agents.Archivist, agents.Writer, agents.Editor, analyzer, session.ProgressFunc(progressFn), pm.log, session.Config{})

	return &ProjectServices{
		ID:           sanitized,
		Store:        store,
		Evidence:     idx,
		TextChunk:    chunks,
		Binding:      bindingSvc,
		MemoryPack:   memPacks,
		Analysis:     analyzer,
		Orchestrator: orchestrator,
		Agents:       agents,
	}, nil
}
