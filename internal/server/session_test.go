package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jackzampolin/wenshape/internal/agents"
	"github.com/jackzampolin/wenshape/internal/gateway"
	"github.com/jackzampolin/wenshape/internal/providers"
)

// mockAgentsFactory wires the real internal/agents constructors against a
// mock LLM client, the same fallback every other agent-backed endpoint in
// this server exercises when no provider profile is configured.
func mockAgentsFactory(gw *gateway.Gateway, log *slog.Logger) Agents {
	llm := providers.NewMockClient()
	return Agents{
		Archivist: agents.NewArchivist(agents.Config{LLM: llm, Logger: log}),
		Writer:    agents.NewWriter(agents.Config{LLM: llm, Logger: log}),
		Editor:    agents.NewEditor(agents.Config{LLM: llm, Logger: log}),
	}
}

func startAgentBackedServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv, err := New(Config{
		Host:          "127.0.0.1",
		Port:          "0",
		DataDir:       t.TempDir(),
		AgentsFactory: mockAgentsFactory,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	var addr string
	for i := 0; i < 200; i++ {
		if srv.listener != nil {
			addr = srv.Addr()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never started listening")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv, addr
}

func TestSessionStartTransitionsAwayFromIdle(t *testing.T) {
	srv, addr := startAgentBackedServer(t)
	base := fmt.Sprintf("http://%s", addr)

	createBody, _ := json.Marshal(createProjectRequest{ID: "session-project"})
	resp, err := http.Post(base+"/projects", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST /projects: %v", err)
	}
	resp.Body.Close()

	startBody, _ := json.Marshal(startSessionRequest{Chapter: "ch1", ChapterTitle: "The Departure", ChapterGoal: "introduce the protagonist"})
	resp, err = http.Post(base+"/projects/session-project/session/start", "application/json", bytes.NewReader(startBody))
	if err != nil {
		t.Fatalf("POST session/start: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST session/start: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	svc, err := srv.projects.Get("session-project")
	if err != nil {
		t.Fatalf("projects.Get: %v", err)
	}
	svc.Orchestrator.Wait()

	resp, err = http.Get(base + "/projects/session-project/session/status")
	if err != nil {
		t.Fatalf("GET session/status: %v", err)
	}
	defer resp.Body.Close()
	var state struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if state.Status == "idle" {
		t.Fatal("expected session status to move past idle after Start")
	}
}

func TestAnalyzeChapterWithoutDraftReturnsError(t *testing.T) {
	_, addr := startAgentBackedServer(t)
	base := fmt.Sprintf("http://%s", addr)

	createBody, _ := json.Marshal(createProjectRequest{ID: "analysis-project"})
	resp, err := http.Post(base+"/projects", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST /projects: %v", err)
	}
	resp.Body.Close()

	analyzeBody, _ := json.Marshal(analyzeChapterRequest{Chapter: "ch1"})
	resp, err = http.Post(base+"/projects/analysis-project/session/analyze", "application/json", bytes.NewReader(analyzeBody))
	if err != nil {
		t.Fatalf("POST session/analyze: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("expected analysis of a chapter with no draft to fail")
	}
}

func TestEvidenceSearchEmptyProjectReturnsNoHits(t *testing.T) {
	_, addr := startAgentBackedServer(t)
	base := fmt.Sprintf("http://%s", addr)

	createBody, _ := json.Marshal(createProjectRequest{ID: "evidence-project"})
	resp, err := http.Post(base+"/projects", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST /projects: %v", err)
	}
	resp.Body.Close()

	searchBody, _ := json.Marshal(evidenceSearchRequest{Queries: []string{"dragon"}, Limit: 10})
	resp, err = http.Post(base+"/projects/evidence-project/evidence/search", "application/json", bytes.NewReader(searchBody))
	if err != nil {
		t.Fatalf("POST evidence/search: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST evidence/search: status %d", resp.StatusCode)
	}
}
