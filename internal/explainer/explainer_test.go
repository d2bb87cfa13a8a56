package explainer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

type stubExplainer struct {
	result Result
	err    error
	delay  time.Duration
}

func (s *stubExplainer) Explain(ctx context.Context, details model.ScanDetails, wallet string) (Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func TestClient_Explain_UsesExplainerResultOnSuccess(t *testing.T) {
	stub := &stubExplainer{result: Result{Explanation: "custom", Recommendation: "custom-rec"}}
	c := New(stub, time.Second)

	r := c.Explain(context.Background(), model.RiskSafe, 0, model.ScanDetails{}, "")
	if r.Explanation != "custom" {
		t.Errorf("expected explainer's result to be used, got %q", r.Explanation)
	}
}

func TestClient_Explain_FallsBackOnTimeout(t *testing.T) {
	stub := &stubExplainer{delay: 200 * time.Millisecond}
	c := New(stub, 10*time.Millisecond)

	r := c.Explain(context.Background(), model.RiskDanger, 90, model.ScanDetails{}, "")
	if r.Recommendation != "Do not sign this transaction." {
		t.Errorf("expected fallback DANGER recommendation, got %q", r.Recommendation)
	}
}

func TestClient_Explain_FallsBackOnError(t *testing.T) {
	stub := &stubExplainer{err: errors.New("boom")}
	c := New(stub, time.Second)

	r := c.Explain(context.Background(), model.RiskCaution, 50, model.ScanDetails{}, "")
	if r.Recommendation == "" {
		t.Error("expected a non-empty fallback recommendation")
	}
}

func TestClient_Explain_NilExplainerUsesFallback(t *testing.T) {
	c := New(nil, time.Second)
	r := c.Explain(context.Background(), model.RiskSafe, 0, model.ScanDetails{}, "")
	if r.Recommendation != "No action needed." {
		t.Errorf("expected SAFE fallback recommendation, got %q", r.Recommendation)
	}
}

func TestBuildFallback_MentionsBlocklistedProgram(t *testing.T) {
	details := model.ScanDetails{Program: &model.ProgramAnalysis{Blocklisted: 1}}
	r := BuildFallback(model.RiskDanger, 100, details)
	if !strings.Contains(r.Explanation, "malicious program") {
		t.Errorf("expected explanation to mention the malicious program, got %q", r.Explanation)
	}
}
