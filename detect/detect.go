// Package detect provides local change-point detectors. A detector
// observes a node's own sequence of post-round estimates only; it never
// sees the ground truth, which is reserved for the validation layer.
package detect

import "fmt"

// Detector consumes one post-round estimate per round and reports whether
// a change point triggered on that observation.
type Detector interface {
	Name() string
	Observe(x float64) bool
	Reset()
}

// Detector names accepted by ByName, matching the configuration surface.
const (
	NameCUSUM = "cusum"
	NameGLR   = "glr"
	NameNone  = "off"
)

// ByName returns the detector selected by configuration.
func ByName(name string) (Detector, error) {
	switch name {
	case NameCUSUM:
		return NewCUSUM(defaultCUSUMDrift, defaultCUSUMThreshold), nil
	case NameGLR:
		return NewGLR(30, 10.0), nil
	case NameNone, "", "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown change detector %q", name)
	}
}

// None is the disabled detector.
type None struct{}

func (None) Name() string           { return NameNone }
func (None) Observe(float64) bool   { return false }
func (None) Reset()                 {}
