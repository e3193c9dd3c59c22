package updater

import (
	"strconv"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/tensor"
)

// SGDUpdater is stochastic gradient descent with optional momentum,
// weight decay and per-round learning-rate decay.
type SGDUpdater struct {
	tag     string
	weight  *tensor.RawTensor
	grad    *tensor.RawTensor
	backend tensor.Backend

	lr       float64
	momentum float64
	wd       float64
	lrDecay  float64

	// velocity is allocated on first use; nil while momentum is zero.
	velocity *tensor.RawTensor
}

// NewSGD creates an SGD updater for one weight tensor. grad is the layer's
// gradient accumulator and must match the weight's shape.
func NewSGD(tag string, weight, grad *tensor.RawTensor, backend tensor.Backend) (*SGDUpdater, error) {
	if weight == nil || grad == nil {
		return nil, errors.New("sgd: weight and gradient are required")
	}
	if !weight.Shape().Equal(grad.Shape()) {
		return nil, errors.Errorf("sgd: weight shape %v does not match gradient shape %v",
			weight.Shape(), grad.Shape())
	}
	return &SGDUpdater{
		tag:     tag,
		weight:  weight,
		grad:    grad,
		backend: backend,
		lr:      0.01,
	}, nil
}

// Init logs the effective configuration.
func (u *SGDUpdater) Init() {
	klog.V(1).Infof("sgd[%s]: lr=%g momentum=%g wd=%g lr_decay=%g shape=%v",
		u.tag, u.lr, u.momentum, u.wd, u.lrDecay, u.weight.Shape())
}

// SetParam recognizes learning_rate (alias eta), momentum, wd and
// lr_decay. Tag-scoped names like "learning_rate:bias" apply only to the
// matching weight. Unknown names are ignored; unparsable values for
// recognized names panic.
func (u *SGDUpdater) SetParam(name, value string) {
	if tag, rest, ok := splitScopedName(name); ok {
		if tag != u.tag {
			return
		}
		name = rest
	}
	switch name {
	case "learning_rate", "eta":
		u.lr = parseFloatParam(name, value)
	case "momentum":
		u.momentum = parseFloatParam(name, value)
	case "wd":
		u.wd = parseFloatParam(name, value)
	case "lr_decay":
		u.lrDecay = parseFloatParam(name, value)
	}
}

// StartRound decays the learning rate once per round after the first.
func (u *SGDUpdater) StartRound(round int) {
	if u.lrDecay > 0 && round > 0 {
		u.lr *= u.lrDecay
		klog.V(1).Infof("sgd[%s]: round %d lr=%g", u.tag, round, u.lr)
	}
}

// Update applies the accumulated layer gradient and zeroes it.
func (u *SGDUpdater) Update(epoch int64) {
	u.applyGradient(u.grad)
	u.backend.Fill(u.grad, 0)
}

// UpdateWithGradient applies an externally supplied gradient. grad is
// read-only to the updater; the layer accumulator is untouched.
func (u *SGDUpdater) UpdateWithGradient(epoch int64, grad *tensor.RawTensor) {
	u.applyGradient(grad)
}

// ApplyVisitor exposes the managed weight and gradient.
func (u *SGDUpdater) ApplyVisitor(v graph.Visitor) {
	v.Visit(u.tag, u.weight, u.grad)
}

func (u *SGDUpdater) applyGradient(grad *tensor.RawTensor) {
	if u.momentum == 0 {
		if u.wd > 0 {
			u.backend.Scale(u.weight, 1-u.lr*u.wd)
		}
		u.backend.Axpy(u.weight, -u.lr, grad)
		return
	}

	if u.velocity == nil {
		u.velocity = tensor.MustNewRaw(u.weight.Shape(), u.weight.DType(), u.weight.Device())
	}
	u.backend.Scale(u.velocity, u.momentum)
	u.backend.Axpy(u.velocity, -u.lr, grad)
	if u.wd > 0 {
		u.backend.Axpy(u.velocity, -u.lr*u.wd, u.weight)
	}
	u.backend.Axpy(u.weight, 1, u.velocity)
}

// splitScopedName splits "name:tag" configuration keys.
func splitScopedName(name string) (tag, rest string, ok bool) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:], name[:i], true
		}
	}
	return "", "", false
}

func parseFloatParam(name, value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic(errors.Errorf("invalid value %q for parameter %q", value, name))
	}
	return f
}
