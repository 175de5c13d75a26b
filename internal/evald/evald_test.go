package evald

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/store"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

var opts = scoring.Options{PenaltyFactor: 0.75, ZeroTargetError: 1e6}

// perfectRequest tracks two distinct targets exactly
func perfectRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{
		"time":    []any{0, 0.5, 1},
		"outputs": []any{[]any{1, 1, 1}, []any{2, 2, 2}},
		"targets": []any{[]any{1, 1, 1}, []any{2, 2, 2}},
		"source":  9,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return s
}

func TestDecodeScoreRequest(t *testing.T) {
	req, err := DecodeScoreRequest(perfectRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.NumOutputs != 2 || req.Source != 9 || req.Log.Len() != 3 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Log.Source[2] != 9 {
		t.Fatalf("expected source channel filled, got %v", req.Log.Source)
	}
}

func TestDecodeScoreRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing time", map[string]any{"outputs": []any{[]any{1}}, "targets": []any{[]any{1}}}},
		{"no channels", map[string]any{"time": []any{0}, "outputs": []any{}, "targets": []any{}}},
		{"channel mismatch", map[string]any{"time": []any{0}, "outputs": []any{[]any{1}}, "targets": []any{}}},
		{"ragged", map[string]any{"time": []any{0, 1}, "outputs": []any{[]any{1}}, "targets": []any{[]any{1, 1}}}},
		{"non numeric", map[string]any{"time": []any{"a"}, "outputs": []any{[]any{1}}, "targets": []any{[]any{1}}}},
		{"bad source", map[string]any{"time": []any{0}, "outputs": []any{[]any{1}}, "targets": []any{[]any{1}}, "source": "x"}},
		{"fractional num_outputs", map[string]any{"time": []any{0}, "outputs": []any{[]any{1}}, "targets": []any{[]any{1}}, "num_outputs": 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			if _, err := DecodeScoreRequest(s); err == nil {
				t.Fatalf("expected decode error")
			}
		})
	}
}

func TestScoreStructPerfect(t *testing.T) {
	resp, _, err := scoreStruct(perfectRequest(t), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.GetFields()
	if got := fields["score"].GetNumberValue(); got != math.MaxFloat64 {
		t.Fatalf("expected MaxScore, got %g", got)
	}
	if fields["same_output"].GetBoolValue() || fields["degenerate"].GetBoolValue() {
		t.Fatalf("unexpected degeneracy in %v", resp)
	}
}

func TestScoreStructNumOutputsOutOfRange(t *testing.T) {
	req := perfectRequest(t)
	req.Fields["num_outputs"] = structpb.NewNumberValue(3)
	if _, _, err := scoreStruct(req, opts); err == nil {
		t.Fatalf("expected error for num_outputs beyond the logged channels")
	}
}

func dialBufconn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	return dialBufconnWithMetrics(t, nil)
}

func dialBufconnWithMetrics(t *testing.T, collector *metrics.Collector) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(opts, collector)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCScoreLog(t *testing.T) {
	client := NewScoringServiceClient(dialBufconn(t))

	// Output_1 mirrors the source: penalised
	req, err := structpb.NewStruct(map[string]any{
		"time":    []any{0, 1},
		"outputs": []any{[]any{1.5, 1.5}, []any{9, 9}},
		"targets": []any{[]any{1, 1}, []any{9, 9}},
		"source":  9,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := client.ScoreLog(context.Background(), req)
	if err != nil {
		t.Fatalf("ScoreLog error: %v", err)
	}
	fields := resp.GetFields()
	// worst integrated error is 0.5, so 0.75 * 1/0.5
	if got := fields["score"].GetNumberValue(); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("expected 1.5, got %g", got)
	}
	src := fields["source_output"].GetListValue().GetValues()
	if len(src) != 2 || src[0].GetBoolValue() || !src[1].GetBoolValue() {
		t.Fatalf("unexpected source flags %v", src)
	}
}

func TestGRPCScoreLogCountsScores(t *testing.T) {
	collector := metrics.NewCollector(nil)
	client := NewScoringServiceClient(dialBufconnWithMetrics(t, collector))
	if _, err := client.ScoreLog(context.Background(), perfectRequest(t)); err != nil {
		t.Fatalf("ScoreLog error: %v", err)
	}
	if _, err := client.ScoreLog(context.Background(), &structpb.Struct{}); err == nil {
		t.Fatalf("expected an error for an empty request")
	}
	assertExposition(t, collector, `converter_eval_logs_scored_total{transport="grpc"} 1`)
}

func TestGRPCScoreLogInvalidArgument(t *testing.T) {
	client := NewScoringServiceClient(dialBufconn(t))
	_, err := client.ScoreLog(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPCHealth(t *testing.T) {
	client := healthpb.NewHealthClient(dialBufconn(t))
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ScoringServiceName})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func newTestHTTPServer(t *testing.T) (*HTTPServer, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewHTTPServer(st, metrics.NewCollector(nil), opts), st
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHTTPServerScore(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	body := `{"time":[0,1],"outputs":[[1,1],[2,2]],"targets":[[2,2],[2,2]],"source":5}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(body))

	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	// Output_0 is off by 50%: score 2
	if resp["score"] != 2.0 {
		t.Fatalf("expected score 2, got %v", resp["score"])
	}
}

func TestHTTPServerScoreCountsScores(t *testing.T) {
	collector := metrics.NewCollector(nil)
	srv := NewHTTPServer(nil, collector, opts)
	body := `{"time":[0,1],"outputs":[[1,1],[2,2]],"targets":[[2,2],[2,2]],"source":5}`
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(body)))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	assertExposition(t, collector, `converter_eval_logs_scored_total{transport="http"} 2`)
	assertExposition(t, collector, `converter_eval_scenario_score_log10_count 2`)
}

func assertExposition(t *testing.T, collector *metrics.Collector, want string) {
	t.Helper()
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("expected %q in exposition, got:\n%s", want, rr.Body.String())
	}
}

func TestOpenRecorder(t *testing.T) {
	ctx := context.Background()

	rec, err := OpenRecorder(ctx, config.Storage{Driver: config.StorageMemory})
	if err != nil || rec != nil {
		t.Fatalf("memory storage: expected no recorder, got %v, %v", rec, err)
	}
	if rec, err := OpenRecorder(ctx, config.Storage{}); err != nil || rec != nil {
		t.Fatalf("default storage: expected no recorder, got %v, %v", rec, err)
	}

	var cfgErr *config.ConfigurationError
	if _, err := OpenRecorder(ctx, config.Storage{Driver: "postgres"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error for unknown driver, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "evals.db")
	writer, err := store.Open(ctx, config.Storage{Driver: config.StorageSQLite, Path: path})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()
	if err := writer.Save(ctx, &store.Record{ID: "shared", CandidateID: "cand", Outcome: metrics.OutcomeScored}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	rec, err = OpenRecorder(ctx, config.Storage{Driver: config.StorageSQLite, Path: path})
	if err != nil || rec == nil {
		t.Fatalf("sqlite storage: expected a recorder, got %v, %v", rec, err)
	}
	defer rec.Close()

	srv := NewHTTPServer(rec, nil, opts)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/evaluations/shared", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "cand") {
		t.Fatalf("expected the shared record, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHTTPServerScoreErrors(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"invalid log", http.MethodPost, `{"time":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/v1/score", strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestHTTPServerEvaluations(t *testing.T) {
	srv, st := newTestHTTPServer(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := st.Save(ctx, &store.Record{ID: id, CandidateID: "cand-" + id, Outcome: metrics.OutcomeScored}); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/evaluations?limit=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var list struct {
		Evaluations []store.Record `json:"evaluations"`
		Count       int            `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if list.Count != 2 || list.Evaluations[0].ID != "c" {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/evaluations/b", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "cand-b") {
		t.Fatalf("unexpected get response %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/evaluations/zzz", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/evaluations", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHTTPServerWithoutStore(t *testing.T) {
	srv := NewHTTPServer(nil, nil, opts)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/evaluations", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to be absent without a collector, got %d", rr.Code)
	}
}

func TestHTTPServerMetrics(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "converter_eval_best_fitness") {
		t.Fatalf("expected evaluator metrics in exposition")
	}
}
