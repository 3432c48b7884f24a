package gowizard

import "fmt"

// Sequence is the ordered, immutable list of steps a wizard walks through.
// Steps are copied at construction, so later changes to the *Step values
// passed in do not affect the sequence.
type Sequence struct {
	steps []*Step
	index map[string]int
}

// NewSequence builds a sequence from steps in order.
// It fails when there are no steps, when a step has an empty id or when two
// steps share an id.
func NewSequence(steps ...*Step) (*Sequence, error) {
	if len(steps) == 0 {
		return nil, ErrEmptySequence
	}

	seq := &Sequence{
		steps: make([]*Step, 0, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	for i, step := range steps {
		if step == nil || step.ID == "" {
			return nil, fmt.Errorf("%w: step at index %d", ErrEmptyStepID, i)
		}
		if prev, exists := seq.index[step.ID]; exists {
			return nil, fmt.Errorf("%w: '%s' at index %d and %d", ErrDuplicateStepID, step.ID, prev, i)
		}
		seq.index[step.ID] = i
		seq.steps = append(seq.steps, step.clone())
	}
	return seq, nil
}

// MustSequence is like NewSequence but panics on error.
func MustSequence(steps ...*Step) *Sequence {
	seq, err := NewSequence(steps...)
	if err != nil {
		panic(err)
	}
	return seq
}

// Len returns the number of steps.
func (s *Sequence) Len() int {
	return len(s.steps)
}

// Last returns the index of the final step.
func (s *Sequence) Last() int {
	return len(s.steps) - 1
}

// IndexOf resolves a step id to its position.
func (s *Sequence) IndexOf(id string) (int, error) {
	i, ok := s.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: '%s'", ErrStepNotFound, id)
	}
	return i, nil
}

// At returns a copy of the step at index.
func (s *Sequence) At(index int) (*Step, error) {
	if index < 0 || index >= len(s.steps) {
		return nil, fmt.Errorf("%w: index %d, sequence has %d steps", ErrOutOfRange, index, len(s.steps))
	}
	return s.steps[index].clone(), nil
}

// Steps returns a copy of the step list.
func (s *Sequence) Steps() []*Step {
	out := make([]*Step, len(s.steps))
	for i, step := range s.steps {
		out[i] = step.clone()
	}
	return out
}

// IDs returns the step ids in order.
func (s *Sequence) IDs() []string {
	ids := make([]string, len(s.steps))
	for i, step := range s.steps {
		ids[i] = step.ID
	}
	return ids
}

// Info returns serializable information for every step in order.
func (s *Sequence) Info() []StepInfo {
	infos := make([]StepInfo, len(s.steps))
	for i, step := range s.steps {
		infos[i] = step.toStepInfo()
	}
	return infos
}
