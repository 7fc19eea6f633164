package cadence

import (
	"errors"
	"math"
	"testing"
)

func TestPlanClampsBaseRatio(t *testing.T) {
	analysis := &ClipAnalysis{SpeakingRate: 3.0, Samples: 1003}
	target := &BatchTarget{Rate: 8.5}

	plan, err := Plan(analysis, []float64{1, 0.9, 0.82, 0.5}, target)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if plan.BaseRatio != MaxBaseRatio {
		t.Errorf("BaseRatio = %v, want %v", plan.BaseRatio, MaxBaseRatio)
	}

	if plan.NoOp {
		t.Error("NoOp set on a 1.25 plan")
	}

	want := []float64{1.25, 1.25 * 0.9, 1.25 * 0.82, MinMultiplier}
	for i, multiplier := range plan.Multipliers() {
		if math.Abs(multiplier-want[i]) > 1e-12 {
			t.Errorf("multiplier[%d] = %v, want %v", i, multiplier, want[i])
		}
	}

	bounds := []int{0, 250, 500, 750, 1003}
	for i, segment := range plan.Segments {
		if segment.Index != i || segment.Start != bounds[i] || segment.End != bounds[i+1] {
			t.Errorf("segment %d = %+v", i, segment)
		}
	}

	if err := plan.validate(1003); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestPlanSlowClipLowerBound(t *testing.T) {
	plan, err := Plan(&ClipAnalysis{SpeakingRate: 20, Samples: 100}, []float64{1}, &BatchTarget{Rate: 8.5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if plan.BaseRatio != MinBaseRatio || plan.Segments[0].Multiplier != MinBaseRatio {
		t.Errorf("plan = %+v", plan)
	}
}

func TestPlanNoOpFastPath(t *testing.T) {
	analysis := &ClipAnalysis{SpeakingRate: 8.6, Samples: 800}

	plan, err := Plan(analysis, flatDrift(8), &BatchTarget{Rate: 8.5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if !plan.NoOp {
		t.Fatalf("NoOp not set, multipliers %v", plan.Multipliers())
	}

	for i, multiplier := range plan.Multipliers() {
		if multiplier != 1.0 {
			t.Errorf("multiplier[%d] = %v, want 1.0", i, multiplier)
		}
	}

	if runs := plan.runs(); len(runs) != 1 || runs[0].deviates() {
		t.Errorf("runs = %+v", runs)
	}
}

func TestPlanNoOpIgnoresDrift(t *testing.T) {
	opts := DefaultOptions()
	opts.Profile = ProfileModerate
	opts.NumSegments = 4

	drift, err := EstimateDrift(nil, nil, opts)
	if err != nil {
		t.Fatalf("EstimateDrift: %v", err)
	}

	plan, err := Plan(&ClipAnalysis{SpeakingRate: 8.5, Samples: 4000}, drift, &BatchTarget{Rate: 8.5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if !plan.NoOp || plan.BaseRatio != 1.0 {
		t.Fatalf("plan = %+v", plan)
	}

	for i, multiplier := range plan.Multipliers() {
		if multiplier != 1.0 {
			t.Errorf("multiplier[%d] = %v, want 1.0", i, multiplier)
		}
	}
}

func TestPlanDriftAppliesOffTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.Profile = ProfileModerate
	opts.NumSegments = 4

	drift, err := EstimateDrift(nil, nil, opts)
	if err != nil {
		t.Fatalf("EstimateDrift: %v", err)
	}

	plan, err := Plan(&ClipAnalysis{SpeakingRate: 8.0, Samples: 4000}, drift, &BatchTarget{Rate: 8.5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	base := 8.5 / 8.0
	if plan.NoOp || plan.Segments[0].Multiplier != base || math.Abs(plan.Segments[3].Multiplier-base*0.9) > 1e-12 {
		t.Errorf("plan = %+v", plan.Multipliers())
	}
}

func TestPlanInvalid(t *testing.T) {
	if _, err := Plan(nil, []float64{1}, &BatchTarget{Rate: 8}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("nil analysis: err = %v", err)
	}

	if _, err := Plan(&ClipAnalysis{SpeakingRate: 8, Samples: 10}, nil, &BatchTarget{Rate: 8}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("no drift: err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		samples  int
		valid    bool
	}{
		{
			name:     "tiles",
			segments: []Segment{{Index: 0, Start: 0, End: 5, Multiplier: 1}, {Index: 1, Start: 5, End: 10, Multiplier: 1.2}},
			samples:  10,
			valid:    true,
		},
		{name: "empty", samples: 10},
		{
			name:     "gap",
			segments: []Segment{{Index: 0, Start: 0, End: 4, Multiplier: 1}, {Index: 1, Start: 5, End: 10, Multiplier: 1}},
			samples:  10,
		},
		{
			name:     "overlap",
			segments: []Segment{{Index: 0, Start: 0, End: 6, Multiplier: 1}, {Index: 1, Start: 5, End: 10, Multiplier: 1}},
			samples:  10,
		},
		{
			name:     "short of the end",
			segments: []Segment{{Index: 0, Start: 0, End: 9, Multiplier: 1}},
			samples:  10,
		},
		{
			name:     "multiplier out of bounds",
			segments: []Segment{{Index: 0, Start: 0, End: 10, Multiplier: 1.5}},
			samples:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&SegmentPlan{Segments: tt.segments}).validate(tt.samples)

			if tt.valid && err != nil {
				t.Errorf("validate: %v", err)
			}

			if !tt.valid && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("validate = %v, want ErrInvalidPlan", err)
			}
		})
	}
}

func TestRunsMergeEqualNeighbours(t *testing.T) {
	plan := &SegmentPlan{Segments: []Segment{
		{Index: 0, Start: 0, End: 10, Multiplier: 1.1},
		{Index: 1, Start: 10, End: 20, Multiplier: 1.1},
		{Index: 2, Start: 20, End: 20, Multiplier: 1.3},
		{Index: 3, Start: 20, End: 30, Multiplier: 1.0},
		{Index: 4, Start: 30, End: 40, Multiplier: 1.01},
		{Index: 5, Start: 40, End: 50, Multiplier: 1.2},
	}}

	runs := plan.runs()
	if len(runs) != 4 {
		t.Fatalf("runs = %+v", runs)
	}

	if runs[0].start != 0 || runs[0].end != 20 || len(runs[0].indexes) != 2 || !runs[0].deviates() {
		t.Errorf("run 0 = %+v", runs[0])
	}

	if runs[1].deviates() || runs[2].deviates() {
		t.Errorf("runs within epsilon marked deviating: %+v %+v", runs[1], runs[2])
	}

	if runs[3].start != 40 || runs[3].end != 50 || !runs[3].deviates() {
		t.Errorf("run 3 = %+v", runs[3])
	}
}

func TestIdentityPlan(t *testing.T) {
	plan := identityPlan(1000, 3)

	if err := plan.validate(1000); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(plan.Segments) != 3 || !plan.NoOp {
		t.Errorf("plan = %+v", plan)
	}
}
