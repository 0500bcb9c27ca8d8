package expreplay

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/timestep"
)

// transition returns a Transition tagged with id in its reward so that
// sampled transitions can be traced back to the Add that stored them
func transition(id int) timestep.Transition {
	state := mat.NewVecDense(1, []float64{float64(id)})
	next := mat.NewVecDense(1, []float64{float64(id + 1)})
	return timestep.Transition{
		State:     state,
		Action:    id % 2,
		Reward:    float64(id),
		NextState: next,
		Terminal:  false,
	}
}

// TestConfigCreate checks that Config produces the requested sampler
// and rejects invalid parameters
func TestConfigCreate(t *testing.T) {
	conf := Config{
		SampleMethod: Uniform,
		MaxCapacity:  10,
		MinCapacity:  2,
		BatchSize:    2,
	}
	if _, err := conf.Create(14); err != nil {
		t.Error(err)
	}

	conf.SampleMethod = Prioritized
	conf.Alpha = 0.6
	conf.Beta0 = 0.4
	if _, err := conf.Create(14); err != nil {
		t.Error(err)
	}

	conf.SampleMethod = SamplerType("Stratified")
	if _, err := conf.Create(14); err == nil {
		t.Error("expected error for unknown sample method")
	}

	conf = Config{SampleMethod: Uniform, MaxCapacity: 2, MinCapacity: 4,
		BatchSize: 2}
	if _, err := conf.Create(14); err == nil {
		t.Error("expected error when min capacity exceeds max capacity")
	}

	conf = Config{SampleMethod: Uniform, MaxCapacity: 10, MinCapacity: 1,
		BatchSize: 0}
	if _, err := conf.Create(14); err == nil {
		t.Error("expected error for non-positive batch size")
	}

	conf = Config{SampleMethod: Prioritized, MaxCapacity: 10,
		MinCapacity: 1, BatchSize: 1, Alpha: -0.5}
	if _, err := conf.Create(14); err == nil {
		t.Error("expected error for negative alpha")
	}
}

// TestUniformSampleErrors checks that sampling before enough
// transitions are stored returns the expected errors
func TestUniformSampleErrors(t *testing.T) {
	r, err := NewUniform(3, 10, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	_, _, _, err = r.Sample()
	if !IsEmptyBuffer(err) {
		t.Errorf("expected empty buffer error \n\thave(%v)", err)
	}

	r.Add(transition(0))
	r.Add(transition(1))
	_, _, _, err = r.Sample()
	if !IsInsufficientSamples(err) {
		t.Errorf("expected insufficient samples error \n\thave(%v)", err)
	}

	r.Add(transition(2))
	if _, _, _, err := r.Sample(); err != nil {
		t.Errorf("sampling should be legal at min capacity \n\thave(%v)",
			err)
	}
}

// TestUniformSingleTransition checks the smallest legal configuration:
// capacity 1, batch size 1
func TestUniformSingleTransition(t *testing.T) {
	r, err := NewUniform(1, 1, 1, 14)
	if err != nil {
		t.Fatal(err)
	}

	r.Add(transition(7))
	batch, slots, weights, err := r.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || len(slots) != 1 || len(weights) != 1 {
		t.Fatalf("incorrect batch size \n\twant(%v) \n\thave(%v)", 1,
			len(batch))
	}
	want := transition(7)
	if batch[0].Reward != want.Reward || batch[0].Action != want.Action ||
		batch[0].Terminal != want.Terminal {
		t.Errorf("transition fields modified \n\twant(%v) \n\thave(%v)",
			want, batch[0])
	}
	if !mat.Equal(batch[0].State, want.State) ||
		!mat.Equal(batch[0].NextState, want.NextState) {
		t.Error("transition state vectors modified")
	}
	if weights[0] != 1.0 {
		t.Errorf("uniform weights should be 1 \n\thave(%v)", weights[0])
	}
}

// TestUniformEviction checks that the buffer overwrites the oldest
// stored transition once at capacity
func TestUniformEviction(t *testing.T) {
	capacity := 4
	r, err := NewUniform(1, capacity, 2, 14)
	if err != nil {
		t.Fatal(err)
	}

	for id := 0; id < 10; id++ {
		r.Add(transition(id))
	}
	if r.Capacity() != capacity {
		t.Fatalf("incorrect capacity \n\twant(%v) \n\thave(%v)", capacity,
			r.Capacity())
	}

	// Only ids 6..9 remain after ids 0..5 were evicted oldest-first
	for i := 0; i < 100; i++ {
		batch, _, _, err := r.Sample()
		if err != nil {
			t.Fatal(err)
		}
		for _, tr := range batch {
			if tr.Reward < 6 || tr.Reward > 9 {
				t.Fatalf("sampled evicted transition %v", tr.Reward)
			}
		}
	}
}

// TestUniformBatchSize checks that Sample returns batches of the
// configured size even when it equals the number of distinct stored
// transitions
func TestUniformBatchSize(t *testing.T) {
	r, err := NewUniform(1, 100, 8, 14)
	if err != nil {
		t.Fatal(err)
	}

	for id := 0; id < 8; id++ {
		r.Add(transition(id))
	}
	batch, slots, weights, err := r.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 8 || len(slots) != 8 || len(weights) != 8 {
		t.Errorf("incorrect batch size \n\twant(%v) \n\thave(%v)", 8,
			len(batch))
	}
}

// TestPrioritizedFreshTransitions checks that transitions which have
// never had their priority updated are sampled at the maximum priority
// seen so far
func TestPrioritizedFreshTransitions(t *testing.T) {
	r, err := NewPrioritized(1, 4, 1, 0.6, 0.4, 0.0, 14)
	if err != nil {
		t.Fatal(err)
	}
	p := r.(*prioritized)

	r.Add(transition(0))
	if p.tree.Priority(0) != 1.0 {
		t.Errorf("fresh transition not stored at max priority \n\twant(%v)"+
			" \n\thave(%v)", 1.0, p.tree.Priority(0))
	}

	// Raise the maximum priority, then store another fresh transition
	if err := p.UpdatePriorities([]int{0}, []float64{10.0}); err != nil {
		t.Fatal(err)
	}
	r.Add(transition(1))
	if p.tree.Priority(1) != p.maxPriority {
		t.Errorf("fresh transition not stored at max priority \n\twant(%v)"+
			" \n\thave(%v)", p.maxPriority, p.tree.Priority(1))
	}
}

// TestPrioritizedSamplingBias checks that a transition with much
// larger priority is sampled far more often than the rest
func TestPrioritizedSamplingBias(t *testing.T) {
	r, err := NewPrioritized(1, 10, 1, 1.0, 0.4, 0.0, 14)
	if err != nil {
		t.Fatal(err)
	}
	p := r.(*prioritized)

	for id := 0; id < 10; id++ {
		r.Add(transition(id))
	}

	// Slot 3 gets a priority 100x the others
	tdErrors := make([]float64, 10)
	slots := make([]int, 10)
	for i := range tdErrors {
		slots[i] = i
		tdErrors[i] = 0.01
	}
	tdErrors[3] = 1.0
	if err := p.UpdatePriorities(slots, tdErrors); err != nil {
		t.Fatal(err)
	}

	hits := 0
	samples := 10_000
	for i := 0; i < samples; i++ {
		_, sampled, _, err := r.Sample()
		if err != nil {
			t.Fatal(err)
		}
		if sampled[0] == 3 {
			hits++
		}
	}

	// Slot 3 holds ~92% of the total priority mass
	if hits < samples/2 {
		t.Errorf("high priority transition undersampled: %v of %v", hits,
			samples)
	}
}

// TestPrioritizedWeights checks that importance-sampling weights are
// normalized so the largest weight in a batch is 1, and that low
// probability transitions get the larger weights
func TestPrioritizedWeights(t *testing.T) {
	r, err := NewPrioritized(1, 8, 8, 1.0, 1.0, 0.0, 14)
	if err != nil {
		t.Fatal(err)
	}
	p := r.(*prioritized)

	for id := 0; id < 8; id++ {
		r.Add(transition(id))
	}
	slots := []int{0, 1, 2, 3, 4, 5, 6, 7}
	tdErrors := []float64{1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 8.0}
	if err := p.UpdatePriorities(slots, tdErrors); err != nil {
		t.Fatal(err)
	}

	_, sampled, weights, err := r.Sample()
	if err != nil {
		t.Fatal(err)
	}

	maxWeight := 0.0
	for _, w := range weights {
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight != 1.0 {
		t.Errorf("weights not normalized to max 1 \n\thave(%v)", maxWeight)
	}

	// Any sampled high-priority transition must carry a smaller weight
	// than any sampled low-priority transition
	for i, slot := range sampled {
		for j, other := range sampled {
			if slot == 7 && other != 7 && weights[i] >= weights[j] {
				t.Errorf("high probability transition should have smaller "+
					"weight \n\thave(%v >= %v)", weights[i], weights[j])
			}
		}
	}
}

// TestPrioritizedBetaAnnealing checks that beta grows by betaGrowth per
// sample and is clamped at 1
func TestPrioritizedBetaAnnealing(t *testing.T) {
	r, err := NewPrioritized(1, 4, 1, 0.6, 0.9, 0.06, 14)
	if err != nil {
		t.Fatal(err)
	}
	p := r.(*prioritized)

	r.Add(transition(0))
	if _, _, _, err := r.Sample(); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Beta()-0.96) > 1e-12 {
		t.Errorf("incorrect beta after one sample \n\twant(%v) "+
			"\n\thave(%v)", 0.96, p.Beta())
	}

	for i := 0; i < 5; i++ {
		if _, _, _, err := r.Sample(); err != nil {
			t.Fatal(err)
		}
	}
	if p.Beta() != 1.0 {
		t.Errorf("beta not clamped at 1 \n\thave(%v)", p.Beta())
	}
}

// TestPrioritizedUpdateErrors checks argument validation of
// UpdatePriorities
func TestPrioritizedUpdateErrors(t *testing.T) {
	r, err := NewPrioritized(1, 4, 1, 0.6, 0.4, 0.0, 14)
	if err != nil {
		t.Fatal(err)
	}
	p := r.(*prioritized)

	if err := p.UpdatePriorities([]int{0, 1}, []float64{1.0}); err == nil {
		t.Error("expected error for mismatched slots and errors")
	}
	if err := p.UpdatePriorities([]int{4}, []float64{1.0}); err == nil {
		t.Error("expected error for out of range slot")
	}
}
