package observe

// Box is an immutable value cell and the unit of weak value caching.
//
// Hosts allocate a fresh Box every time a property is set, so a Box stays
// reachable exactly as long as its subject holds that value or a caller
// retains it. The combine-latest cache holds boxes weakly and observes their
// collection as the "value destroyed" signal.
type Box struct {
	v any
}

// NewBox returns a box holding v. The inner value may be nil (a nil-valued
// box is still a present value, distinct from an absent one).
func NewBox(v any) *Box {
	return &Box{v: v}
}

// Value returns the boxed value. A nil receiver yields nil.
func (b *Box) Value() any {
	if b == nil {
		return nil
	}
	return b.v
}
