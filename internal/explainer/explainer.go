// Package explainer wraps the pluggable natural-language Explainer
// collaborator with a deadline and a deterministic fallback template,
// so a slow or absent explainer never holds up a scan result.
package explainer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

// Result is the explainer's output: a short explanation plus a
// recommended next action for the caller.
type Result struct {
	Explanation    string
	Recommendation string
}

// Explainer is the pluggable collaborator named in spec §6. Real
// implementations typically call out to an LLM or templating service;
// the core never depends on how.
type Explainer interface {
	Explain(ctx context.Context, details model.ScanDetails, wallet string) (Result, error)
}

// Client calls an Explainer under a deadline and substitutes a
// deterministic template on timeout or failure.
type Client struct {
	explainer Explainer
	deadline  time.Duration
}

// New builds a Client. explainer may be nil, in which case every call
// uses the fallback template.
func New(explainer Explainer, deadline time.Duration) *Client {
	return &Client{explainer: explainer, deadline: deadline}
}

// Explain produces the final explanation/recommendation for a scan,
// falling back to BuildFallback on timeout, error, or a nil explainer.
func (c *Client) Explain(ctx context.Context, riskLevel model.RiskLevel, riskScore int, details model.ScanDetails, wallet string) Result {
	if c.explainer == nil {
		return BuildFallback(riskLevel, riskScore, details)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := c.explainer.Explain(callCtx, details, wallet)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- r
	}()

	select {
	case r := <-resultCh:
		return r
	case <-errCh:
		return BuildFallback(riskLevel, riskScore, details)
	case <-callCtx.Done():
		return BuildFallback(riskLevel, riskScore, details)
	}
}

// BuildFallback assembles a deterministic human-readable explanation
// and recommendation from risk_level/risk_score and whatever analyzer
// details completed — the same "concatenate signal phrases" idiom used
// for human-readable alert descriptions elsewhere in this codebase.
func BuildFallback(riskLevel model.RiskLevel, riskScore int, details model.ScanDetails) Result {
	var b strings.Builder

	switch riskLevel {
	case model.RiskDanger:
		b.WriteString("This transaction shows strong indicators of malicious intent. ")
	case model.RiskCaution:
		b.WriteString("This transaction has some characteristics worth reviewing before signing. ")
	default:
		b.WriteString("No significant risk indicators were found in this transaction. ")
	}
	fmt.Fprintf(&b, "Risk score: %d/100. ", riskScore)

	if details.Program != nil && details.Program.Blocklisted > 0 {
		b.WriteString("It interacts with a known malicious program. ")
	}
	if details.Pattern != nil && len(details.Pattern.Matches) > 0 {
		fmt.Fprintf(&b, "%d known exploit pattern(s) matched. ", len(details.Pattern.Matches))
	}
	if details.ML != nil && details.ML.Classification != model.MLNormal {
		fmt.Fprintf(&b, "The anomaly model flagged this as %s. ", strings.ToLower(string(details.ML.Classification)))
	}
	if details.Account != nil && details.Account.UserAtRisk {
		b.WriteString("Your wallet appears among the affected accounts. ")
	}

	recommendation := recommendationFor(riskLevel)
	return Result{Explanation: strings.TrimSpace(b.String()), Recommendation: recommendation}
}

func recommendationFor(riskLevel model.RiskLevel) string {
	switch riskLevel {
	case model.RiskDanger:
		return "Do not sign this transaction."
	case model.RiskCaution:
		return "Review the transaction details carefully before signing."
	default:
		return "No action needed."
	}
}
