package eventsourcing

// Change records a modification of an optional field inside an Updated event.
//
// A nil *Change means the field was not modified. A non-nil Change with a nil
// Value means the field was cleared. JSON encoding keeps both distinctions:
// an absent key decodes to nil, {"value":null} decodes to a clearing change.
type Change[T any] struct {
	Value *T `json:"value"`
}

// Set returns a change assigning v.
func Set[T any](v T) *Change[T] {
	return &Change[T]{Value: &v}
}

// Clear returns a change removing the current value.
func Clear[T any]() *Change[T] {
	return &Change[T]{}
}

// SetOrClear returns a clearing change for nil, an assigning change otherwise.
func SetOrClear[T any](v *T) *Change[T] {
	if v == nil {
		return Clear[T]()
	}
	return Set(*v)
}

// IsClear reports whether the change removes the value.
func (c *Change[T]) IsClear() bool {
	return c != nil && c.Value == nil
}

// ApplyTo writes the change into dst when present.
func (c *Change[T]) ApplyTo(dst **T) {
	if c == nil {
		return
	}
	if c.Value == nil {
		*dst = nil
		return
	}
	v := *c.Value
	*dst = &v
}
