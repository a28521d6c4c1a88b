package openai

import "testing"

func TestModelDimensions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
	}
	for _, c := range cases {
		if got := modelDimensions(c.model); got != c.want {
			t.Errorf("modelDimensions(%q) = %d, want %d", c.model, got, c.want)
		}
	}
}

func TestModelDimensions_UnknownModelPositive(t *testing.T) {
	t.Parallel()

	if got := modelDimensions("some-future-model"); got <= 0 {
		t.Errorf("modelDimensions(unknown) = %d, want > 0", got)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Error("New with empty apiKey: err=nil, want error")
	}
}

func TestNew_DefaultsModelAndBatchSize(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID() = %q, want %q", p.ModelID(), DefaultModel)
	}
	if p.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", p.batchSize, DefaultBatchSize)
	}
}

func TestNew_InvalidBatchSizeFallsBack(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "", WithBatchSize(-3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", p.batchSize, DefaultBatchSize)
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	t.Parallel()

	got := float64ToFloat32([]float64{0.5, -1.25, 2})
	want := []float32{0.5, -1.25, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}
