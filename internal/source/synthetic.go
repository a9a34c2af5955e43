package source

import "context"

// SyntheticProfile describes a square wave with bounded pseudo-random
// jitter, which is enough to watch the filter smooth steps and noise.
type SyntheticProfile struct {
	Low       uint16
	High      uint16
	HalfCycle int    // reads spent at each level
	Jitter    uint16 // exclusive upper bound of added noise; 0 disables
	Seed      uint32
}

func DefaultSyntheticProfile() SyntheticProfile {
	return SyntheticProfile{
		Low:       400,
		High:      600,
		HalfCycle: 500,
		Jitter:    32,
		Seed:      0x9e3779b9,
	}
}

// Synthetic is a deterministic in-process source.
type Synthetic struct {
	profile SyntheticProfile
	n       int
	state   uint32
}

func NewSynthetic(profile SyntheticProfile) *Synthetic {
	if profile.HalfCycle <= 0 {
		profile.HalfCycle = 1
	}
	if profile.Seed == 0 {
		profile.Seed = 1
	}

	return &Synthetic{profile: profile, state: profile.Seed}
}

func (*Synthetic) Name() string {
	return "synthetic"
}

func (s *Synthetic) Read(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	level := s.profile.Low
	if (s.n/s.profile.HalfCycle)%2 == 1 {
		level = s.profile.High
	}
	s.n++

	if s.profile.Jitter == 0 {
		return level, nil
	}

	noise := uint16(s.next() % uint32(s.profile.Jitter))
	if level > ^uint16(0)-noise {
		return ^uint16(0), nil
	}

	return level + noise, nil
}

func (*Synthetic) Close() error {
	return nil
}

// next is a 32-bit xorshift step.
func (s *Synthetic) next() uint32 {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.state = x

	return x
}
