// Package mlp implements an action-value function using multi-layered
// perceptron function approximation built on Gorgonia
package mlp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/qlearn-go/qlearn/initwfn"
	"github.com/qlearn-go/qlearn/network"
	"github.com/qlearn-go/qlearn/solver"
	"github.com/qlearn-go/qlearn/vfn"
)

// Config describes the architecture and optimizer of an MLP value
// function
type Config struct {
	HiddenSizes []int                 // Hidden layer sizes
	Biases      []bool                // Whether each hidden layer has a bias
	Activations []*network.Activation // Activation of each hidden layer
	Solver      *solver.Solver        // Optimizer for the learnable weights
	InitWFn     *initwfn.InitWFn      // Weight initialization algorithm
	BatchSize   int                   // Batch size of gradient updates

	// Tau is the soft-update rate applied by Set: the receiver's
	// parameters move toward the source's by the Polyak average
	// (1-Tau)*dest + Tau*src. A Tau of 0 makes Set copy exactly,
	// which is the hard target-network update.
	Tau float64
}

// Validate checks the Config for errors
func (c Config) Validate() error {
	if len(c.HiddenSizes) != len(c.Biases) {
		return fmt.Errorf("config: invalid number of biases \n\twant(%v)"+
			" \n\thave(%v)", len(c.HiddenSizes), len(c.Biases))
	}
	if len(c.HiddenSizes) != len(c.Activations) {
		return fmt.Errorf("config: invalid number of activations "+
			"\n\twant(%v) \n\thave(%v)", len(c.HiddenSizes),
			len(c.Activations))
	}
	if c.Solver == nil {
		return fmt.Errorf("config: no solver specified")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer specified")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be >= 1 \n\thave(%v)",
			c.BatchSize)
	}
	if c.Tau < 0.0 || c.Tau > 1.0 {
		return fmt.Errorf("config: tau must be in [0, 1] \n\thave(%v)",
			c.Tau)
	}
	return nil
}

// MLP approximates action values with a multi-head MLP: one output
// head per action. Gradient updates run through a training graph whose
// loss is the weighted squared error between the head of the taken
// action and its regression target; the remaining heads contribute no
// gradient. Predictions run through forward-only clones of the
// network, one per requested batch size, which are kept in sync with
// the training network after every update.
type MLP struct {
	config   Config
	features int
	actions  int

	trainNet network.NeuralNet
	trainVM  G.VM
	solver   G.Solver

	// Input nodes of the training graph
	targets    *G.Node
	selections *G.Node
	isWeights  *G.Node

	evalNets map[int]network.NeuralNet
	evalVMs  map[int]G.VM
}

// New returns a new MLP value function with freshly initialized
// weights
func New(features, actions int, config Config) (*MLP, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if features < 1 {
		return nil, fmt.Errorf("mlp: features must be >= 1 \n\thave(%v)",
			features)
	}
	if actions < 1 {
		return nil, fmt.Errorf("mlp: actions must be >= 1 \n\thave(%v)",
			actions)
	}

	batch := config.BatchSize

	g := G.NewGraph()
	trainNet, err := network.NewMultiHeadMLP(features, batch, actions, g,
		config.HiddenSizes, config.Biases, config.InitWFn.InitWFn(),
		config.Activations)
	if err != nil {
		return nil, fmt.Errorf("mlp: could not create network: %v", err)
	}

	// Nodes fed at each gradient step: the regression targets, the
	// one-hot encoding of the taken actions, and the per-sample
	// importance weights
	targets := G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("targets"))
	selections := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, actions), G.WithName("selections"))
	isWeights := G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("isWeights"))

	// Mask the predictions to the taken action of each sample
	predicted := G.Must(G.HadamardProd(trainNet.Prediction(), selections))
	predicted = G.Must(G.Sum(predicted, 1))

	// Weighted mean squared TD error
	losses := G.Must(G.Square(G.Must(G.Sub(targets, predicted))))
	losses = G.Must(G.HadamardProd(losses, isWeights))
	cost := G.Must(G.Mean(losses))

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("mlp: could not compute gradient: %v", err)
	}

	trainVM := G.NewTapeMachine(g, G.BindDualValues(trainNet.Learnables()...))

	return &MLP{
		config:     config,
		features:   features,
		actions:    actions,
		trainNet:   trainNet,
		trainVM:    trainVM,
		solver:     config.Solver.Config.Create(),
		targets:    targets,
		selections: selections,
		isWeights:  isWeights,
		evalNets:   make(map[int]network.NeuralNet),
		evalVMs:    make(map[int]G.VM),
	}, nil
}

// forBatch returns a forward-only clone of the training network with
// the given input batch size, creating and caching it on first use
func (m *MLP) forBatch(batch int) (network.NeuralNet, G.VM, error) {
	if net, ok := m.evalNets[batch]; ok {
		return net, m.evalVMs[batch], nil
	}

	net, err := m.trainNet.CloneWithBatch(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("forbatch: could not clone network: %v",
			err)
	}
	vm := G.NewTapeMachine(net.Graph())

	m.evalNets[batch] = net
	m.evalVMs[batch] = vm
	return net, vm, nil
}

// syncEvalNets copies the training network's weights into every cached
// forward-only clone
func (m *MLP) syncEvalNets() error {
	for _, net := range m.evalNets {
		if err := net.Set(m.trainNet); err != nil {
			return err
		}
	}
	return nil
}

// Predict returns the estimated action values for each state in the
// batch, one row per state and one column per action
func (m *MLP) Predict(states *mat.Dense) (*mat.Dense, error) {
	rows, cols := states.Dims()
	if cols != m.features {
		return nil, fmt.Errorf("predict: invalid feature size \n\twant(%v)"+
			" \n\thave(%v)", m.features, cols)
	}

	net, vm, err := m.forBatch(rows)
	if err != nil {
		return nil, err
	}

	if err := net.SetInput(flatten(states)); err != nil {
		return nil, fmt.Errorf("predict: could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run forward pass: %v", err)
	}

	output, err := outputData(net.Output())
	if err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	values := mat.NewDense(rows, m.actions, output)
	vm.Reset()

	if err := vfn.CheckFinite("predict", values); err != nil {
		return nil, err
	}
	return values, nil
}

// GradientStep performs one optimizer step toward the given targets.
// The states batch must have exactly the configured batch size rows.
func (m *MLP) GradientStep(states *mat.Dense, targets []float64,
	actions []int, weights []float64) error {
	rows, cols := states.Dims()
	if rows != m.config.BatchSize {
		return fmt.Errorf("gradientstep: invalid batch size \n\twant(%v)"+
			" \n\thave(%v)", m.config.BatchSize, rows)
	}
	if cols != m.features {
		return fmt.Errorf("gradientstep: invalid feature size \n\twant(%v)"+
			" \n\thave(%v)", m.features, cols)
	}
	if len(targets) != rows || len(actions) != rows {
		return fmt.Errorf("gradientstep: invalid batch \n\twant(%v targets,"+
			" %v actions) \n\thave(%v, %v)", rows, rows, len(targets),
			len(actions))
	}
	if weights != nil && len(weights) != rows {
		return fmt.Errorf("gradientstep: invalid number of weights "+
			"\n\twant(%v) \n\thave(%v)", rows, len(weights))
	}

	// One-hot encode the taken actions
	selections := make([]float64, rows*m.actions)
	for i, action := range actions {
		if action < 0 || action >= m.actions {
			return fmt.Errorf("gradientstep: invalid action \n\twant[0, %v)"+
				" \n\thave(%v)", m.actions, action)
		}
		selections[i*m.actions+action] = 1.0
	}

	if weights == nil {
		weights = make([]float64, rows)
		for i := range weights {
			weights[i] = 1.0
		}
	}

	if err := m.trainNet.SetInput(flatten(states)); err != nil {
		return fmt.Errorf("gradientstep: could not set input: %v", err)
	}

	targetTensor := tensor.New(tensor.WithBacking(append([]float64{},
		targets...)), tensor.WithShape(rows))
	if err := G.Let(m.targets, targetTensor); err != nil {
		return fmt.Errorf("gradientstep: could not set targets: %v", err)
	}

	selectionTensor := tensor.New(tensor.WithBacking(selections),
		tensor.WithShape(rows, m.actions))
	if err := G.Let(m.selections, selectionTensor); err != nil {
		return fmt.Errorf("gradientstep: could not set selections: %v", err)
	}

	weightTensor := tensor.New(tensor.WithBacking(append([]float64{},
		weights...)), tensor.WithShape(rows))
	if err := G.Let(m.isWeights, weightTensor); err != nil {
		return fmt.Errorf("gradientstep: could not set weights: %v", err)
	}

	if err := m.trainVM.RunAll(); err != nil {
		return fmt.Errorf("gradientstep: could not run update: %v", err)
	}
	if err := m.solver.Step(m.trainNet.Model()); err != nil {
		return fmt.Errorf("gradientstep: could not apply gradients: %v", err)
	}
	m.trainVM.Reset()

	return m.syncEvalNets()
}

// Set updates the parameters of the receiver from source, which must
// be an *MLP of the same architecture. With a Tau of 0 the source's
// parameters are copied exactly; otherwise the receiver's parameters
// are moved toward the source's by the Polyak average
// (1-Tau)*dest + Tau*src.
func (m *MLP) Set(source vfn.ValueFunction) error {
	src, ok := source.(*MLP)
	if !ok {
		return fmt.Errorf("set: source is a %T, not an *mlp.MLP", source)
	}
	if src.features != m.features || src.actions != m.actions {
		return fmt.Errorf("set: architecture mismatch \n\twant(%v -> %v)"+
			" \n\thave(%v -> %v)", m.features, m.actions, src.features,
			src.actions)
	}

	if m.config.Tau > 0.0 {
		if err := m.trainNet.Polyak(src.trainNet, m.config.Tau); err != nil {
			return fmt.Errorf("set: could not average parameters: %v", err)
		}
	} else if err := m.trainNet.Set(src.trainNet); err != nil {
		return fmt.Errorf("set: could not copy parameters: %v", err)
	}
	return m.syncEvalNets()
}

// Clone returns an independent copy of the value function with its own
// parameters and optimizer state. The clone's parameters equal the
// receiver's exactly, regardless of Tau.
func (m *MLP) Clone() (vfn.ValueFunction, error) {
	clone, err := New(m.features, m.actions, m.config)
	if err != nil {
		return nil, fmt.Errorf("clone: %v", err)
	}
	if err := clone.trainNet.Set(m.trainNet); err != nil {
		return nil, fmt.Errorf("clone: could not copy parameters: %v", err)
	}
	if err := clone.syncEvalNets(); err != nil {
		return nil, fmt.Errorf("clone: %v", err)
	}
	return clone, nil
}

// ObservationDimension returns the length of state vectors
func (m *MLP) ObservationDimension() int {
	return m.features
}

// ActionCount returns the number of actions predicted per state
func (m *MLP) ActionCount() int {
	return m.actions
}

// flatten returns the row-major backing data of a batch of states
func flatten(states *mat.Dense) []float64 {
	rows, cols := states.Dims()
	flat := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			flat[i*cols+j] = states.At(i, j)
		}
	}
	return flat
}

// outputData extracts the float64 backing data of a network output
func outputData(value G.Value) ([]float64, error) {
	if value == nil {
		return nil, fmt.Errorf("no output value computed")
	}

	switch data := value.Data().(type) {
	case []float64:
		return append([]float64{}, data...), nil
	case float64:
		return []float64{data}, nil
	}
	return nil, fmt.Errorf("unexpected output type %T", value.Data())
}
