package blockcfg

// Fragment is a transaction-level item gossiped between nodes before it is
// included in a block.
type Fragment struct {
	ID      FragmentID
	Payload []byte
}

// NewFragment wraps payload and computes its id.
func NewFragment(payload []byte) Fragment {
	return Fragment{
		ID:      FragmentID(sum256(payload)),
		Payload: payload,
	}
}
