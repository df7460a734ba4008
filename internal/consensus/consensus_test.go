package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeVotes(agree, disagree int) []Vote {
	votes := make([]Vote, 0, agree+disagree)
	for i := 0; i < agree; i++ {
		votes = append(votes, Vote{ValidatorID: fmt.Sprintf("a%d", i), Agrees: true, Trust: UnknownTrust})
	}
	for i := 0; i < disagree; i++ {
		votes = append(votes, Vote{ValidatorID: fmt.Sprintf("d%d", i), Agrees: false, Trust: UnknownTrust})
	}
	return votes
}

func TestSimpleMajority(t *testing.T) {
	algo, err := New(KindSimpleMajority, Options{})
	require.NoError(t, err)

	r := algo.Tally(makeVotes(3, 2))
	assert.Equal(t, Approve, r.Outcome)
	assert.Equal(t, 3, r.AgreeCount)
	assert.Equal(t, 2, r.DisagreeCount)
	assert.InDelta(t, 0.2, r.Confidence, 1e-9)

	r = algo.Tally(makeVotes(1, 4))
	assert.Equal(t, Reject, r.Outcome)
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)

	r = algo.Tally(makeVotes(2, 2))
	assert.Equal(t, NoDecision, r.Outcome)

	r = algo.Tally(nil)
	assert.Equal(t, NoDecision, r.Outcome)
	assert.Zero(t, r.Total)
}

func TestTrustWeighted(t *testing.T) {
	algo, err := New(KindTrustWeighted, Options{})
	require.NoError(t, err)

	// Two low-trust agreers lose to one high-trust disagreer.
	votes := []Vote{
		{ValidatorID: "a", Agrees: true, Trust: 0.2},
		{ValidatorID: "b", Agrees: true, Trust: 0.2},
		{ValidatorID: "c", Agrees: false, Trust: 0.9},
	}
	r := algo.Tally(votes)
	assert.Equal(t, Reject, r.Outcome)
	assert.Equal(t, 2, r.AgreeCount)
	assert.Equal(t, 1, r.DisagreeCount)

	// Unknown trust defaults to 0.5, so 2 agree vs 1 disagree approves.
	r = algo.Tally(makeVotes(2, 1))
	assert.Equal(t, Approve, r.Outcome)
}

func TestSupermajority(t *testing.T) {
	algo, err := New(KindSupermajority, Options{SupermajorityFraction: 0.66})
	require.NoError(t, err)

	r := algo.Tally(makeVotes(7, 3))
	assert.Equal(t, Approve, r.Outcome)
	assert.InDelta(t, 0.7, r.Confidence, 1e-9)

	r = algo.Tally(makeVotes(2, 8))
	assert.Equal(t, Reject, r.Outcome)

	// 60/40 is a majority but not a supermajority.
	r = algo.Tally(makeVotes(6, 4))
	assert.Equal(t, NoDecision, r.Outcome)
}

func TestBFT(t *testing.T) {
	algo, err := New(KindBFT, Options{})
	require.NoError(t, err)

	for _, tt := range []struct {
		agree, disagree int
		want            Outcome
	}{
		// n=10 -> f=3 -> need 7.
		{7, 3, Approve},
		{3, 7, Reject},
		{6, 4, NoDecision},
		// n=4 -> f=1 -> need 3.
		{3, 1, Approve},
		{2, 2, NoDecision},
		// n=1 -> f=0 -> need 1.
		{1, 0, Approve},
	} {
		r := algo.Tally(makeVotes(tt.agree, tt.disagree))
		assert.Equal(t, tt.want, r.Outcome, "agree=%d disagree=%d", tt.agree, tt.disagree)
	}
}

// The 2f+1 bound must decide for every n once one side reaches it.
func TestBFTThresholdProperty(t *testing.T) {
	algo, err := New(KindBFT, Options{})
	require.NoError(t, err)

	for n := 1; n <= 30; n++ {
		f := (n - 1) / 3
		needed := 2*f + 1
		for agree := 0; agree <= n; agree++ {
			r := algo.Tally(makeVotes(agree, n-agree))
			switch {
			case agree >= needed:
				assert.Equal(t, Approve, r.Outcome, "n=%d agree=%d", n, agree)
			case n-agree >= needed:
				assert.Equal(t, Reject, r.Outcome, "n=%d agree=%d", n, agree)
			default:
				assert.Equal(t, NoDecision, r.Outcome, "n=%d agree=%d", n, agree)
			}
		}
	}
}

func TestQuorum(t *testing.T) {
	algo, err := New(KindQuorum, Options{QuorumFraction: 0.5, EligibleValidators: 10})
	require.NoError(t, err)

	// 4 of 10 eligible: below quorum, no decision even with a clear majority.
	r := algo.Tally(makeVotes(4, 0))
	assert.Equal(t, NoDecision, r.Outcome)

	// 5 of 10 eligible: quorum met, simple majority applies.
	r = algo.Tally(makeVotes(4, 1))
	assert.Equal(t, Approve, r.Outcome)

	_, err = New(KindQuorum, Options{QuorumFraction: 0.5})
	assert.Error(t, err)
}

func TestAdaptiveDispatch(t *testing.T) {
	algo, err := New(KindAdaptive, Options{})
	require.NoError(t, err)

	// Small pool: simple majority decides 3/1.
	r := algo.Tally(makeVotes(3, 1))
	assert.Equal(t, Approve, r.Outcome)

	// Medium pool: trust weighting applies. High-trust minority wins.
	votes := []Vote{
		{ValidatorID: "a", Agrees: true, Trust: 0.1},
		{ValidatorID: "b", Agrees: true, Trust: 0.1},
		{ValidatorID: "c", Agrees: true, Trust: 0.1},
		{ValidatorID: "d", Agrees: false, Trust: 0.9},
		{ValidatorID: "e", Agrees: false, Trust: 0.9},
	}
	r = algo.Tally(votes)
	assert.Equal(t, Reject, r.Outcome)

	// Large pool: BFT bound. 7/4 with n=11 needs 2*3+1=7.
	r = algo.Tally(makeVotes(7, 4))
	assert.Equal(t, Approve, r.Outcome)
	// 6/5 stays undecided under BFT.
	r = algo.Tally(makeVotes(6, 5))
	assert.Equal(t, NoDecision, r.Outcome)
}

func TestKindFromString(t *testing.T) {
	for s, want := range map[string]Kind{
		"simple":        KindSimpleMajority,
		"weighted":      KindTrustWeighted,
		"supermajority": KindSupermajority,
		"bft":           KindBFT,
		"quorum":        KindQuorum,
		"adaptive":      KindAdaptive,
	} {
		kind, err := KindFromString(s)
		assert.NoError(t, err)
		assert.Equal(t, want, kind)
	}

	_, err := KindFromString("majority-of-one")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	// Even split among six voters.
	warnings := Inspect(makeVotes(3, 3))
	assert.Contains(t, warnings, WarnEvenSplit)

	// Four voters splitting evenly is too small to flag.
	warnings = Inspect(makeVotes(2, 2))
	assert.NotContains(t, warnings, WarnEvenSplit)

	// Unanimity among three or more.
	warnings = Inspect(makeVotes(3, 0))
	assert.Contains(t, warnings, WarnUnanimous)
	warnings = Inspect(makeVotes(0, 4))
	assert.Contains(t, warnings, WarnUnanimous)
	warnings = Inspect(makeVotes(2, 0))
	assert.NotContains(t, warnings, WarnUnanimous)

	// Identical trust across five distinct voters.
	votes := make([]Vote, 0, 5)
	for i := 0; i < 5; i++ {
		votes = append(votes, Vote{ValidatorID: fmt.Sprintf("v%d", i), Agrees: i%2 == 0, Trust: 0.5})
	}
	warnings = Inspect(votes)
	assert.Contains(t, warnings, WarnIdenticalTrust)

	// Unknown trust never counts toward the sybil heuristic.
	warnings = Inspect(makeVotes(5, 0))
	assert.NotContains(t, warnings, WarnIdenticalTrust)
}
