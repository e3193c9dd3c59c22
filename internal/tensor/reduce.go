package tensor

// ReduceKind selects the windowed reduction applied by Backend.Pool and
// inverted by Backend.Unpool. The set is closed: layers dispatch over it
// instead of carrying per-reduction implementations.
type ReduceKind int

// Supported windowed reductions.
const (
	ReduceMax ReduceKind = iota
	ReduceSum
)

// String returns a human-readable reduction name.
func (k ReduceKind) String() string {
	switch k {
	case ReduceMax:
		return "max"
	case ReduceSum:
		return "sum"
	default:
		return "unknown"
	}
}
