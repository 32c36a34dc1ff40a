package model

// Usage tracks non-negative token counts for a single model call. Negative
// inputs are clamped to zero by Normalize rather than rejected outright,
// since a provider adapter misreporting usage should degrade gracefully
// rather than fail the whole request.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}

// Normalize clamps every field to zero or above.
func (u Usage) Normalize() Usage {
	clamp := func(n int) int {
		if n < 0 {
			return 0
		}
		return n
	}
	return Usage{
		InputTokens:              clamp(u.InputTokens),
		OutputTokens:             clamp(u.OutputTokens),
		CacheCreationInputTokens: clamp(u.CacheCreationInputTokens),
		CacheReadInputTokens:     clamp(u.CacheReadInputTokens),
	}
}

// Add returns the element-wise sum of u and other, both normalized first.
func (u Usage) Add(other Usage) Usage {
	a, b := u.Normalize(), other.Normalize()
	return Usage{
		InputTokens:              a.InputTokens + b.InputTokens,
		OutputTokens:             a.OutputTokens + b.OutputTokens,
		CacheCreationInputTokens: a.CacheCreationInputTokens + b.CacheCreationInputTokens,
		CacheReadInputTokens:     a.CacheReadInputTokens + b.CacheReadInputTokens,
	}
}

// Total returns InputTokens + OutputTokens, the figure tracker.Tracker
// aggregates across a conversation tree.
func (u Usage) Total() int {
	n := u.Normalize()
	return n.InputTokens + n.OutputTokens
}
