package dice

import "go.uber.org/zap"

// Picker selects one element index from a set and logs each pick at debug level.
type Picker struct {
	src    Source
	logger *zap.Logger
}

// NewPicker creates a Picker drawing from src.
//
// Precondition: src and logger must be non-nil.
func NewPicker(src Source, logger *zap.Logger) *Picker {
	return &Picker{src: src, logger: logger}
}

// Pick returns a uniformly chosen index in [0, n). purpose names what is being
// picked in the log entry.
//
// Postcondition: Returns -1 when n <= 0.
func (p *Picker) Pick(purpose string, n int) int {
	if n <= 0 {
		return -1
	}
	i := p.src.Intn(n)
	p.logger.Debug("random pick",
		zap.String("purpose", purpose),
		zap.Int("choices", n),
		zap.Int("index", i),
	)
	return i
}

// PickString returns a uniformly chosen element of choices, or "" if empty.
func (p *Picker) PickString(purpose string, choices []string) string {
	i := p.Pick(purpose, len(choices))
	if i < 0 {
		return ""
	}
	return choices[i]
}
