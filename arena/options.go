package arena

// GrowthPolicy decides the size of each block added after the permanent one.
type GrowthPolicy uint8

const (
	// GrowthFixed adds blocks of exactly the block increment.
	GrowthFixed GrowthPolicy = iota
	// GrowthLinear adds blocks of n * increment.
	GrowthLinear
	// GrowthFibonacci adds blocks following the Fibonacci sequence of increments.
	GrowthFibonacci
	// GrowthExponential doubles the block size each time.
	GrowthExponential
)

// String returns the policy name.
func (p GrowthPolicy) String() string {
	switch p {
	case GrowthFixed:
		return "Fixed"
	case GrowthLinear:
		return "Linear"
	case GrowthFibonacci:
		return "Fibonacci"
	case GrowthExponential:
		return "Exponential"
	default:
		return "Unknown"
	}
}

const (
	// DefaultInlineSize is the size of the permanent block.
	DefaultInlineSize = 4 * 1024

	// DefaultBlockIncrement is the base size for growth-policy blocks.
	DefaultBlockIncrement = 16 * 1024

	// MaxAllocationSize is the hard per-allocation ceiling.
	MaxAllocationSize = 1 << 29

	maxAlignment         = 16
	constrainedAlignment = 8
)

// Option configures an Arena.
type Option func(*Arena)

// WithInlineSize sets the size of the permanent block.
func WithInlineSize(size int) Option {
	return func(a *Arena) {
		if size > 0 {
			a.inlineSize = size
		}
	}
}

// WithBlockIncrement sets the base size of blocks added by the growth policy.
func WithBlockIncrement(size int) Option {
	return func(a *Arena) {
		if size > 0 {
			a.increment = size
		}
	}
}

// WithGrowthPolicy selects how block sizes grow. The default is GrowthFibonacci.
func WithGrowthPolicy(p GrowthPolicy) Option {
	return func(a *Arena) {
		a.policy = p
	}
}

// WithConstrainedAlignment aligns allocations to 8 bytes instead of the
// platform maximum. Use it when embedding into hosts that cannot honour
// 16-byte alignment.
func WithConstrainedAlignment() Option {
	return func(a *Arena) {
		a.align = constrainedAlignment
	}
}
