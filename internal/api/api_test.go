package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/codeintel/internal/intel"
	"github.com/starford/codeintel/internal/models"
	"github.com/starford/codeintel/internal/query"
	"github.com/starford/codeintel/internal/testutil"
)

type envOptions struct {
	authEnabled bool
	token       string
	mirror      bool
	noRegistry  bool
	sse         http.Handler
}

func sampleSet() models.EntitySet {
	create := testutil.Entity(".aios-core/development/tasks/create-story.md", models.LayerTemplates, "story-tmpl", "missing-task")
	create.Purpose = "Draft the next story"
	create.Keywords = []string{"story"}
	tmpl := testutil.Entity(".aios-core/product/templates/story-tmpl.yaml", models.LayerTemplates)
	tmpl.Type = "template"
	tmpl.UsedBy = []string{"create-story"}
	return models.EntitySet{
		"tasks":     {"create-story": create},
		"templates": {"story-tmpl": tmpl},
	}
}

// testEnv sets up a registry document, engine, optional mirror, and router.
func testEnv(t *testing.T, o envOptions) http.Handler {
	t.Helper()
	doc := testutil.Document(sampleSet(), "tasks", "templates")
	path := filepath.Join(t.TempDir(), "entity-registry.yaml")
	if !o.noRegistry {
		testutil.WriteRegistry(t, path, doc)
	}
	engine := query.New(path, testutil.Logger())

	var svc *intel.Service
	if o.mirror {
		db := testutil.TestDB(t)
		if err := db.Replace(doc); err != nil {
			t.Fatalf("Replace: %v", err)
		}
		svc = intel.NewService(engine, db)
	} else {
		svc = intel.NewService(engine, nil)
	}
	return NewRouter(svc, o.authEnabled, o.token, o.sse)
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDefinition(t *testing.T) {
	router := testEnv(t, envOptions{})

	w := get(t, router, "/definition?symbol=create-story")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var def query.Definition
	_ = json.Unmarshal(w.Body.Bytes(), &def)
	if def.File != ".aios-core/development/tasks/create-story.md" || def.Line != 1 {
		t.Errorf("definition = %+v", def)
	}
	if def.Context != "Draft the next story" {
		t.Errorf("context = %q", def.Context)
	}
}

func TestDefinition_TypeHint(t *testing.T) {
	router := testEnv(t, envOptions{})

	w := get(t, router, "/definition?symbol=story&type=template")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var def query.Definition
	_ = json.Unmarshal(w.Body.Bytes(), &def)
	if def.ID != "story-tmpl" {
		t.Errorf("id = %q, want story-tmpl", def.ID)
	}
}

func TestDefinition_Errors(t *testing.T) {
	router := testEnv(t, envOptions{})

	if w := get(t, router, "/definition"); w.Code != http.StatusBadRequest {
		t.Errorf("missing symbol = %d, want 400", w.Code)
	}
	w := get(t, router, "/definition?symbol=zzz-nothing")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown symbol = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUnavailableRegistry(t *testing.T) {
	router := testEnv(t, envOptions{noRegistry: true})

	for _, target := range []string{
		"/definition?symbol=x",
		"/references?symbol=x",
		"/dependencies?target=x",
		"/codebase",
		"/stats",
	} {
		if w := get(t, router, target); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", target, w.Code)
		}
	}

	w := get(t, router, "/available")
	var resp AvailableResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Available {
		t.Errorf("available = %d %+v", w.Code, resp)
	}
}

func TestReferences(t *testing.T) {
	router := testEnv(t, envOptions{})

	w := get(t, router, "/references?symbol=story-tmpl")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ReferencesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.References) != 1 || resp.References[0].ID != "create-story" {
		t.Errorf("references = %+v", resp.References)
	}

	if w := get(t, router, "/references?symbol=ghost"); w.Code != http.StatusNotFound {
		t.Errorf("ghost = %d, want 404", w.Code)
	}
}

func TestDependencies_Formats(t *testing.T) {
	router := testEnv(t, envOptions{})

	w := get(t, router, "/dependencies?target=create-story")
	if w.Code != http.StatusOK {
		t.Fatalf("json status = %d", w.Code)
	}
	var g query.DependencyGraph
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if len(g.Nodes) != 2 || len(g.Edges) != 2 || g.UnresolvedCount != 1 {
		t.Errorf("graph = %+v", g)
	}

	w = get(t, router, "/dependencies?target=create-story&format=dot")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "digraph") {
		t.Errorf("dot = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("content type = %q", ct)
	}

	w = get(t, router, "/dependencies?target=create-story&format=mermaid")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "graph TD") {
		t.Errorf("mermaid = %d %q", w.Code, w.Body.String())
	}

	if w := get(t, router, "/dependencies?target=create-story&format=svg"); w.Code != http.StatusBadRequest {
		t.Errorf("svg = %d, want 400", w.Code)
	}
	if w := get(t, router, "/dependencies"); w.Code != http.StatusBadRequest {
		t.Errorf("no target = %d, want 400", w.Code)
	}
}

func TestCodebaseAndStats(t *testing.T) {
	router := testEnv(t, envOptions{})

	w := get(t, router, "/codebase")
	if w.Code != http.StatusOK {
		t.Fatalf("codebase = %d", w.Code)
	}
	var cb query.Codebase
	_ = json.Unmarshal(w.Body.Bytes(), &cb)
	if cb.Structure["tasks"].Count != 1 || len(cb.Files) != 2 {
		t.Errorf("codebase = %+v", cb)
	}

	if w := get(t, router, "/codebase?path=.aios-core/unknown"); w.Code != http.StatusNotFound {
		t.Errorf("unknown prefix = %d, want 404", w.Code)
	}

	w = get(t, router, "/stats")
	var st query.ProjectStats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if w.Code != http.StatusOK || st.TotalEntities != 2 || st.Languages["md"] != 1 {
		t.Errorf("stats = %d %+v", w.Code, st)
	}
}

func TestSearch(t *testing.T) {
	router := testEnv(t, envOptions{mirror: true})

	w := get(t, router, "/search?q=story")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Error("expected search results")
	}

	if w := get(t, router, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestSearch_NoMirror(t *testing.T) {
	router := testEnv(t, envOptions{})

	if w := get(t, router, "/search?q=story"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("search without mirror = %d, want 503", w.Code)
	}
	if w := get(t, router, "/entities/tasks/create-story"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("entity without mirror = %d, want 503", w.Code)
	}
}

func TestEntity(t *testing.T) {
	router := testEnv(t, envOptions{mirror: true})

	w := get(t, router, "/entities/templates/story-tmpl")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var d intel.EntityDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Type != "template" || len(d.Dependents) != 1 {
		t.Errorf("entity = %+v", d)
	}

	if w := get(t, router, "/entities/templates/ghost"); w.Code != http.StatusNotFound {
		t.Errorf("ghost = %d, want 404", w.Code)
	}
}

func TestUnsupportedPrimitives(t *testing.T) {
	router := testEnv(t, envOptions{})

	for _, target := range []string{"/callers?symbol=x", "/callees?symbol=x", "/complexity?target=x"} {
		if w := get(t, router, target); w.Code != http.StatusNotImplemented {
			t.Errorf("%s = %d, want 501", target, w.Code)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "secret123"})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed stats = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "secret123"})

	if w := get(t, router, "/stats"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "secret123"})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, envOptions{})

	if w := get(t, router, "/stats"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "secret", sse: blockingSSE})

	if w := get(t, router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnv(t, envOptions{sse: blockingSSE})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "tok", sse: blockingSSE})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "tok", sse: blockingSSE})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should accept the token as a query parameter")
	}
}

func TestQueryToken_OnlyForEvents(t *testing.T) {
	router := testEnv(t, envOptions{authEnabled: true, token: "tok"})

	if w := get(t, router, "/stats?access_token=tok"); w.Code != http.StatusUnauthorized {
		t.Errorf("query token on /stats = %d, want 401", w.Code)
	}
}
