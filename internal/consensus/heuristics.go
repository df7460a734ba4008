package consensus

// Warning is an informational manipulation-heuristic tag. Warnings are
// attached to the resolution record; they never block it.
type Warning string

const (
	// WarnEvenSplit flags a perfectly even split among >=6 voters,
	// a possible collusion pattern.
	WarnEvenSplit Warning = "even_split"
	// WarnUnanimous flags a unanimous vote among >=3 voters, unusual for
	// a contentious action.
	WarnUnanimous Warning = "unanimous"
	// WarnIdenticalTrust flags identical trust scores among >=5 distinct
	// voters, a possible sybil cluster.
	WarnIdenticalTrust Warning = "identical_trust"
)

const (
	evenSplitMinVoters      = 6
	unanimousMinVoters      = 3
	identicalTrustMinVoters = 5
)

// Inspect runs the manipulation heuristics over a vote list.
func Inspect(votes []Vote) []Warning {
	var warnings []Warning

	agree, disagree := count(votes)
	total := len(votes)

	if total >= evenSplitMinVoters && agree == disagree {
		warnings = append(warnings, WarnEvenSplit)
	}

	if total >= unanimousMinVoters && (agree == total || disagree == total) {
		warnings = append(warnings, WarnUnanimous)
	}

	if hasIdenticalTrustCluster(votes) {
		warnings = append(warnings, WarnIdenticalTrust)
	}

	return warnings
}

func hasIdenticalTrustCluster(votes []Vote) bool {
	byTrust := make(map[float64]map[string]struct{})
	for _, v := range votes {
		if v.Trust < 0 {
			continue
		}
		voters, ok := byTrust[v.Trust]
		if !ok {
			voters = make(map[string]struct{})
			byTrust[v.Trust] = voters
		}
		voters[v.ValidatorID] = struct{}{}
		if len(voters) >= identicalTrustMinVoters {
			return true
		}
	}
	return false
}
