package updater

import "github.com/pkg/errors"

// DefaultDataKeyStep is the number of key slots reserved per layer in the
// parameter-service key space. It leaves room for more weight roles per
// layer without renumbering existing keys.
const DefaultDataKeyStep = 4

// weightRoles maps a weight tag to its role offset inside a layer's key
// block. The reverse direction lives in roleTags.
var weightRoles = map[string]int{
	TagWeight: 0,
	TagBias:   1,
}

var roleTags = []string{TagWeight, TagBias}

// KeyCodec derives parameter-service keys from a layer index and a weight
// tag. Every party sharing a key space must use the same Step.
type KeyCodec struct {
	// Step is the size of each layer's key block. Must be at least the
	// number of weight roles.
	Step int
}

// NewKeyCodec returns a codec with the given block size, or the default
// when step is zero.
func NewKeyCodec(step int) (KeyCodec, error) {
	if step == 0 {
		step = DefaultDataKeyStep
	}
	if step < len(roleTags) {
		return KeyCodec{}, errors.Errorf("key step %d smaller than the %d weight roles", step, len(roleTags))
	}
	return KeyCodec{Step: step}, nil
}

// EncodeDataKey maps (layerIndex, tag) to a service key. Distinct
// (layerIndex, tag) pairs always map to distinct keys.
func (c KeyCodec) EncodeDataKey(layerIndex int, tag string) (int, error) {
	if layerIndex < 0 {
		return 0, errors.Errorf("negative layer index %d", layerIndex)
	}
	role, ok := weightRoles[tag]
	if !ok {
		return 0, errors.Errorf("no key role for weight tag %q", tag)
	}
	return layerIndex*c.Step + role, nil
}

// DecodeTag recovers the weight tag from a service key.
func (c KeyCodec) DecodeTag(key int) (string, error) {
	if key < 0 {
		return "", errors.Errorf("negative key %d", key)
	}
	role := key % c.Step
	if role >= len(roleTags) {
		return "", errors.Errorf("key %d has unassigned role %d", key, role)
	}
	return roleTags[role], nil
}

// DecodeLayerIndex recovers the layer index from a service key.
func (c KeyCodec) DecodeLayerIndex(key int) (int, error) {
	if key < 0 {
		return 0, errors.Errorf("negative key %d", key)
	}
	return key / c.Step, nil
}
