// Package consensus implements the interchangeable vote-tallying
// algorithms. Every algorithm is pure: it takes an ordered vote list and
// returns an outcome with counts and a confidence score.
package consensus

import "fmt"

// UnknownTrust marks a vote whose voter trust was not resolved. The
// trust-weighted tally substitutes defaultWeight for it.
const UnknownTrust = -1

const defaultWeight = 0.5

// Vote is a single validator verdict as seen by the tally.
type Vote struct {
	ValidatorID string
	Agrees      bool
	Trust       float64 // voter trust score, or UnknownTrust
}

// Outcome of a tally. NoDecision is a valid, non-terminal result for the
// algorithms that require a threshold (supermajority, BFT, quorum).
type Outcome int

const (
	NoDecision Outcome = iota
	Approve
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "no_decision"
	}
}

// Result of running one algorithm over a vote list.
type Result struct {
	Outcome       Outcome
	AgreeCount    int
	DisagreeCount int
	Total         int
	Confidence    float64 // in [0,1]
}

// Algorithm tallies votes into a Result.
type Algorithm interface {
	Tally(votes []Vote) Result
}

// Kind is the closed set of algorithm variants. An algorithm is selected
// once at construction time; there is no runtime string dispatch.
type Kind int

const (
	KindSimpleMajority Kind = iota
	KindTrustWeighted
	KindSupermajority
	KindBFT
	KindQuorum
	KindAdaptive
)

// KindFromString parses a configuration value into a Kind. Unknown values
// are an error, never a silent fallback.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "simple":
		return KindSimpleMajority, nil
	case "weighted":
		return KindTrustWeighted, nil
	case "supermajority":
		return KindSupermajority, nil
	case "bft":
		return KindBFT, nil
	case "quorum":
		return KindQuorum, nil
	case "adaptive":
		return KindAdaptive, nil
	default:
		return 0, fmt.Errorf("unknown consensus algorithm: %q", s)
	}
}

// Options carry the tunable fractions for the threshold algorithms.
type Options struct {
	SupermajorityFraction float64 // default 0.66
	QuorumFraction        float64 // default 0.5
	// EligibleValidators is the total eligible population the quorum
	// fraction is measured against.
	EligibleValidators int
}

// New constructs the algorithm for a kind.
func New(kind Kind, opts Options) (Algorithm, error) {
	if opts.SupermajorityFraction <= 0 {
		opts.SupermajorityFraction = 0.66
	}
	if opts.QuorumFraction <= 0 {
		opts.QuorumFraction = 0.5
	}

	switch kind {
	case KindSimpleMajority:
		return simpleMajority{}, nil
	case KindTrustWeighted:
		return trustWeighted{}, nil
	case KindSupermajority:
		return supermajority{fraction: opts.SupermajorityFraction}, nil
	case KindBFT:
		return bft{}, nil
	case KindQuorum:
		if opts.EligibleValidators <= 0 {
			return nil, fmt.Errorf("quorum algorithm requires the eligible validator count")
		}
		return quorum{fraction: opts.QuorumFraction, eligible: opts.EligibleValidators}, nil
	case KindAdaptive:
		return adaptive{}, nil
	default:
		return nil, fmt.Errorf("unknown consensus kind: %d", kind)
	}
}

func count(votes []Vote) (agree, disagree int) {
	for _, v := range votes {
		if v.Agrees {
			agree++
		} else {
			disagree++
		}
	}
	return agree, disagree
}

type simpleMajority struct{}

func (simpleMajority) Tally(votes []Vote) Result {
	agree, disagree := count(votes)
	r := Result{AgreeCount: agree, DisagreeCount: disagree, Total: len(votes)}
	if r.Total == 0 || agree == disagree {
		return r
	}
	if agree > disagree {
		r.Outcome = Approve
	} else {
		r.Outcome = Reject
	}
	r.Confidence = float64(abs(agree-disagree)) / float64(r.Total)
	return r
}

type trustWeighted struct{}

func (trustWeighted) Tally(votes []Vote) Result {
	agree, disagree := count(votes)
	r := Result{AgreeCount: agree, DisagreeCount: disagree, Total: len(votes)}
	if r.Total == 0 {
		return r
	}

	var agreeWeight, disagreeWeight float64
	for _, v := range votes {
		w := v.Trust
		if w < 0 {
			w = defaultWeight
		}
		if v.Agrees {
			agreeWeight += w
		} else {
			disagreeWeight += w
		}
	}

	total := agreeWeight + disagreeWeight
	if total == 0 || agreeWeight == disagreeWeight {
		return r
	}
	if agreeWeight > disagreeWeight {
		r.Outcome = Approve
	} else {
		r.Outcome = Reject
	}
	diff := agreeWeight - disagreeWeight
	if diff < 0 {
		diff = -diff
	}
	r.Confidence = diff / total
	return r
}

type supermajority struct {
	fraction float64
}

func (s supermajority) Tally(votes []Vote) Result {
	agree, disagree := count(votes)
	r := Result{AgreeCount: agree, DisagreeCount: disagree, Total: len(votes)}
	if r.Total == 0 {
		return r
	}

	agreeFrac := float64(agree) / float64(r.Total)
	disagreeFrac := float64(disagree) / float64(r.Total)
	switch {
	case agreeFrac >= s.fraction:
		r.Outcome = Approve
		r.Confidence = agreeFrac
	case disagreeFrac >= s.fraction:
		r.Outcome = Reject
		r.Confidence = disagreeFrac
	}
	return r
}

// bft tolerates f = floor((n-1)/3) faulty validators among n and decides
// only once one side holds 2f+1 votes.
type bft struct{}

func (bft) Tally(votes []Vote) Result {
	agree, disagree := count(votes)
	r := Result{AgreeCount: agree, DisagreeCount: disagree, Total: len(votes)}
	if r.Total == 0 {
		return r
	}

	f := (r.Total - 1) / 3
	needed := 2*f + 1
	switch {
	case agree >= needed:
		r.Outcome = Approve
		r.Confidence = float64(agree) / float64(r.Total)
	case disagree >= needed:
		r.Outcome = Reject
		r.Confidence = float64(disagree) / float64(r.Total)
	}
	return r
}

// quorum requires participation of at least fraction*eligible before a
// simple majority applies.
type quorum struct {
	fraction float64
	eligible int
}

func (q quorum) Tally(votes []Vote) Result {
	participation := float64(len(votes)) / float64(q.eligible)
	if participation < q.fraction {
		agree, disagree := count(votes)
		return Result{AgreeCount: agree, DisagreeCount: disagree, Total: len(votes)}
	}
	return simpleMajority{}.Tally(votes)
}

// Pool-size bounds for the adaptive dispatcher.
const (
	smallPoolMax  = 4 // <5 votes: simple majority
	mediumPoolMax = 9 // 5-9 votes: trust weighted, >=10: BFT
)

// adaptive picks simple majority, trust-weighted or BFT purely by the
// size of the vote pool.
type adaptive struct{}

func (adaptive) Tally(votes []Vote) Result {
	switch n := len(votes); {
	case n <= smallPoolMax:
		return simpleMajority{}.Tally(votes)
	case n <= mediumPoolMax:
		return trustWeighted{}.Tally(votes)
	default:
		return bft{}.Tally(votes)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
