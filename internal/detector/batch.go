package detector

// Batch is an ordered sequence of generator outputs. Position is the only
// key linking an output to its score.
type Batch []string

// Normalize turns Detect input into a Batch. A single string becomes a batch
// of one; a non-nil []string or Batch is used as is. Every other kind,
// including nil, yields ErrInvalidInputKind.
func Normalize(input any) (Batch, error) {
	switch v := input.(type) {
	case string:
		return Batch{v}, nil
	case []string:
		if v == nil {
			return nil, ErrInvalidInputKind
		}
		return Batch(v), nil
	case Batch:
		if v == nil {
			return nil, ErrInvalidInputKind
		}
		return v, nil
	default:
		return nil, ErrInvalidInputKind
	}
}
