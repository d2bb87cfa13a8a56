package ml

import "math"

// isolationForest is a deterministic stand-in for a trained
// isolation-forest model: no externally loaded weights, just a fixed
// per-feature weighting plus a standardizer fit to plausible
// transaction shapes. Good enough to produce stable, explainable
// anomaly scores without shipping a model artifact.
type isolationForest struct {
	weights [FeatureCount]float64
	means   [FeatureCount]float64
	stdDevs [FeatureCount]float64
}

// newIsolationForest builds the detector's fixed coefficients. The
// weighting favors the features spec §4.4 calls out as drainer
// signals: many programs/instructions/accounts, approval markers,
// high complexity.
func newIsolationForest() *isolationForest {
	f := &isolationForest{}
	for i := range f.stdDevs {
		f.stdDevs[i] = 1
	}

	// indices follow Features.Vector()'s fixed order.
	f.weights[0] = 0.05  // ProgramCountTotal
	f.weights[2] = 0.08  // ProgramCountUnknown
	f.weights[5] = 0.06  // InstructionCount
	f.weights[9] = 0.12  // ComplexInstructionCount
	f.weights[10] = 0.25 // MaxApprovalMarkerCount
	f.weights[11] = 0.1  // MultiAccountInstrCount
	f.weights[12] = 0.08 // ManyInstructionsFlag
	f.weights[17] = 0.08 // ManyAccountsFlag
	f.weights[19] = 0.15 // DuplicateAccountsFlag
	f.weights[23] = 0.2  // HighComplexityFlag

	f.means[5] = 4
	f.means[13] = 6
	f.means[20] = 200
	f.stdDevs[5] = 3
	f.stdDevs[13] = 5
	f.stdDevs[20] = 150

	return f
}

// decisionFunction standardizes the feature vector and returns a
// weighted anomaly sum plus whether it crosses the outlier threshold.
func (m *isolationForest) decisionFunction(f Features) (raw float64, isOutlier bool) {
	v := f.Vector()
	for i, x := range v {
		standardized := (x - m.means[i]) / m.stdDevs[i]
		raw += m.weights[i] * standardized
	}
	raw = math.Abs(raw)
	return raw, raw > 1.0
}
