package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"yacht-platform/config"
	"yacht-platform/models"
	"yacht-platform/services"
	"yacht-platform/storage"
	"yacht-platform/utils"
)

type testServer struct {
	router   *gin.Engine
	store    *storage.SQLStore
	locker   *services.LocalLocker
	listings []*models.Listing
}

func newTestServer(t *testing.T, runsPerMinute int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.Open(storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	listings := []*models.Listing{
		{Title: "Bavaria 46 Cruiser", Brand: "Bavaria", Model: "46 Cruiser", HIN: "GER123",
			Year: models.Int(2018), Price: models.Float(185000), Length: models.Float(14.27),
			Location: "Hamburg", SourceURL: "https://boats.example/1"},
		{Title: "Bavaria Cruiser 46 (2018)", Brand: "Bavaria", HIN: "GER123",
			Year: models.Int(2018), Price: models.Float(179000), Location: "Kiel",
			SourceURL: "https://boats.example/2"},
		{Title: "Hanse 388", Brand: "Hanse", Year: models.Int(2020), Price: models.Float(210000),
			Location: "Split", SourceURL: "https://boats.example/3"},
	}
	if err := store.Insert(context.Background(), listings); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	logger := utils.NewLoggerTo(io.Discard, "error")
	rules := config.DefaultRules()
	dedup := services.NewDeduplicator(rules.Matching, logger)
	locker := services.NewLocalLocker()
	runner := services.NewRunner(store, dedup, services.NewScorer(rules.Scoring, logger), locker, nil, logger)

	r := gin.New()
	RegisterRoutes(r, NewHandler(runner, store, dedup, services.NewInsightService(logger), logger), RateLimit(runsPerMinute))
	return &testServer{router: r, store: store, locker: locker, listings: listings}
}

func (s *testServer) do(t *testing.T, method, path string) (int, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	if code, _ := s.do(t, http.MethodGet, "/health"); code != http.StatusOK {
		t.Errorf("status: got %d, want 200", code)
	}
}

func TestDeduplicateAndScore(t *testing.T) {
	s := newTestServer(t, 0)

	if code, _ := s.do(t, http.MethodGet, "/v1/runs/last"); code != http.StatusNotFound {
		t.Errorf("last run before any run: got %d, want 404", code)
	}

	code, body := s.do(t, http.MethodPost, "/v1/deduplicate-and-score")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", code, body["error"])
	}
	var report services.RunReport
	if err := json.Unmarshal(body["data"], &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Deduplication == nil || report.Deduplication.DuplicatesMarked != 1 {
		t.Errorf("deduplication: got %+v", report.Deduplication)
	}
	if report.Scoring == nil || report.Scoring.Scored != 2 {
		t.Errorf("scoring: got %+v", report.Scoring)
	}

	code, body = s.do(t, http.MethodGet, "/v1/runs/last")
	if code != http.StatusOK {
		t.Fatalf("last run: got %d", code)
	}
	var last services.RunReport
	if err := json.Unmarshal(body["data"], &last); err != nil {
		t.Fatalf("decode last run: %v", err)
	}
	if last.ID != report.ID {
		t.Errorf("last run id: got %q, want %q", last.ID, report.ID)
	}

	dup, err := s.store.Get(context.Background(), s.listings[1].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !dup.IsDuplicate {
		t.Error("second Bavaria listing should be flagged")
	}
}

func TestSeparateRuns(t *testing.T) {
	s := newTestServer(t, 0)

	code, body := s.do(t, http.MethodPost, "/v1/deduplicate")
	if code != http.StatusOK {
		t.Fatalf("deduplicate: got %d", code)
	}
	var dedup services.DedupResult
	if err := json.Unmarshal(body["data"], &dedup); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dedup.Processed != 3 || dedup.DuplicatesFound != 1 {
		t.Errorf("dedup result: %+v", dedup)
	}

	code, body = s.do(t, http.MethodPost, "/v1/score")
	if code != http.StatusOK {
		t.Fatalf("score: got %d", code)
	}
	var scoring services.ScoreResult
	if err := json.Unmarshal(body["data"], &scoring); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scoring.Processed != 2 {
		t.Errorf("score result: %+v", scoring)
	}
}

func TestRunInProgressConflict(t *testing.T) {
	s := newTestServer(t, 0)
	unlock, err := s.locker.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	for _, path := range []string{"/v1/deduplicate", "/v1/score", "/v1/deduplicate-and-score"} {
		if code, _ := s.do(t, http.MethodPost, path); code != http.StatusConflict {
			t.Errorf("%s: got %d, want 409", path, code)
		}
	}
}

func TestRunRateLimit(t *testing.T) {
	s := newTestServer(t, 1)

	if code, _ := s.do(t, http.MethodPost, "/v1/score"); code != http.StatusOK {
		t.Fatalf("first run: got %d, want 200", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/v1/score"); code != http.StatusTooManyRequests {
		t.Errorf("second run: got %d, want 429", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/stats"); code != http.StatusOK {
		t.Errorf("reads are not rate limited: got %d", code)
	}
}

func TestListListings(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		path      string
		wantCode  int
		wantTotal int
	}{
		{"/v1/listings", http.StatusOK, 3},
		{"/v1/listings?brand=bavaria", http.StatusOK, 2},
		{"/v1/listings?min_price=200000", http.StatusOK, 1},
		{"/v1/listings?min_year=2019&max_year=2021", http.StatusOK, 1},
		{"/v1/listings?min_price=cheap", http.StatusBadRequest, 0},
		{"/v1/listings?skip=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		code, body := s.do(t, http.MethodGet, tt.path)
		if code != tt.wantCode {
			t.Errorf("%s: status %d, want %d", tt.path, code, tt.wantCode)
			continue
		}
		if code != http.StatusOK {
			continue
		}
		var meta struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(body["meta"], &meta); err != nil {
			t.Fatalf("%s: decode meta: %v", tt.path, err)
		}
		if meta.Total != tt.wantTotal {
			t.Errorf("%s: total %d, want %d", tt.path, meta.Total, tt.wantTotal)
		}
	}
}

func TestGetListing(t *testing.T) {
	s := newTestServer(t, 0)

	code, body := s.do(t, http.MethodGet, "/v1/listings/1")
	if code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	var l models.Listing
	if err := json.Unmarshal(body["data"], &l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.Title != "Bavaria 46 Cruiser" {
		t.Errorf("title: got %q", l.Title)
	}

	if code, _ := s.do(t, http.MethodGet, "/v1/listings/abc"); code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/listings/999"); code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", code)
	}
}

func TestCompareListings(t *testing.T) {
	s := newTestServer(t, 0)

	code, body := s.do(t, http.MethodGet, "/v1/listings/1/compare/2")
	if code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	var ex services.MatchExplanation
	if err := json.Unmarshal(body["data"], &ex); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ex.Rule != services.MatchHIN || !ex.Duplicate {
		t.Errorf("rule: got %s", ex.Rule)
	}

	if code, _ := s.do(t, http.MethodGet, "/v1/listings/1/compare/999"); code != http.StatusNotFound {
		t.Errorf("unknown other: got %d, want 404", code)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, 0)
	s.do(t, http.MethodPost, "/v1/deduplicate-and-score")

	code, body := s.do(t, http.MethodGet, "/v1/stats")
	if code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	var counts storage.Stats
	if err := json.Unmarshal(body["meta"], &counts); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	want := storage.Stats{TotalListings: 3, ActiveListings: 2, DuplicateListings: 1}
	if counts != want {
		t.Errorf("counts: got %+v, want %+v", counts, want)
	}

	var report models.InsightReport
	if err := json.Unmarshal(body["data"], &report); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if report.TotalListings != 2 || report.MaxPrice != 210000 {
		t.Errorf("insights: %+v", report)
	}
}
