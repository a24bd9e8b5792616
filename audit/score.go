package audit

// Grade is the letter form of a 0..100 score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor maps a score to its grade. Every scoring check uses this.
func GradeFor(score int) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	}
	return GradeF
}

// Clamp bounds score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Band is the outcome of comparing a metric against its thresholds.
type Band int

const (
	BandGood Band = iota
	BandNeedsImprovement
	BandPoor
)

func (b Band) String() string {
	switch b {
	case BandNeedsImprovement:
		return "needs-improvement"
	case BandPoor:
		return "poor"
	}
	return "good"
}

// Severity is warning for needs-improvement, error for poor, info otherwise.
func (b Band) Severity() Severity {
	switch b {
	case BandNeedsImprovement:
		return SeverityWarning
	case BandPoor:
		return SeverityError
	}
	return SeverityInfo
}

// Thresholds is a static three-band table: values up to Good are good, up
// to NeedsImprovement need improvement, anything above is poor.
type Thresholds struct {
	Good             float64
	NeedsImprovement float64
	NIPenalty        int
	PoorPenalty      int
}

// Band classifies v.
func (t Thresholds) Band(v float64) Band {
	switch {
	case v <= t.Good:
		return BandGood
	case v <= t.NeedsImprovement:
		return BandNeedsImprovement
	}
	return BandPoor
}

// Penalty returns the points deducted for band b.
func (t Thresholds) Penalty(b Band) int {
	switch b {
	case BandNeedsImprovement:
		return t.NIPenalty
	case BandPoor:
		return t.PoorPenalty
	}
	return 0
}

// Limit returns the upper bound of the band b was compared against, used as
// a finding's threshold.
func (t Thresholds) Limit(b Band) float64 {
	if b == BandPoor {
		return t.NeedsImprovement
	}
	return t.Good
}

// Scorecard accumulates penalties keyed by issue class. A class is charged
// once; repeated deductions keep the largest so the result does not depend
// on detection order. The zero value is ready to use.
type Scorecard struct {
	penalties map[string]int
}

// Deduct charges points against class.
func (s *Scorecard) Deduct(class string, points int) {
	if points <= 0 {
		return
	}
	if s.penalties == nil {
		s.penalties = make(map[string]int)
	}
	if points > s.penalties[class] {
		s.penalties[class] = points
	}
}

// Deducted is the unclamped total of all charged penalties.
func (s *Scorecard) Deducted() int {
	total := 0
	for _, p := range s.penalties {
		total += p
	}
	return total
}

// Classes returns the number of charged issue classes.
func (s *Scorecard) Classes() int {
	return len(s.penalties)
}

// Score is 100 minus all penalties, clamped once.
func (s *Scorecard) Score() int {
	return Clamp(100 - s.Deducted())
}

// Grade is GradeFor(Score()).
func (s *Scorecard) Grade() Grade {
	return GradeFor(s.Score())
}
