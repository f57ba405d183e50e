package service

import (
	"testing"

	"github.com/coursegen/worldmodel/internal/domain"
)

func claim(subject, body string) *domain.Claim {
	return &domain.Claim{SubjectID: subject, Body: body}
}

func TestDetector_NegationHeuristic(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("concurrency_control", "Two-phase locking guarantees serializability")
	b := claim("concurrency_control", "Two-phase locking does not guarantee serializability")

	if !d.Compare(a, b) {
		t.Error("expected negated restatement to contradict")
	}
}

func TestDetector_NegationRequiresOverlap(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("concurrency_control", "Two-phase locking guarantees serializability")
	b := claim("concurrency_control", "Optimistic validation does not block readers")

	if d.Compare(a, b) {
		t.Error("negation without shared substance should not contradict")
	}
}

func TestDetector_DoubleNegationAgrees(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("consensus", "Paxos does not require a fixed leader for safety")
	b := claim("consensus", "Paxos never requires a fixed leader for safety")

	if d.Compare(a, b) {
		t.Error("two negated claims agree; should not contradict")
	}
}

func TestDetector_NumericDisagreement(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("relational_model", "The relational model was published in 1970 by Codd")
	b := claim("relational_model", "The relational model was published in 1969 by Codd")

	if !d.Compare(a, b) {
		t.Error("expected differing years near the same keyword to contradict")
	}
}

func TestDetector_SameNumberAgrees(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("relational_model", "Codd published the relational model in 1970")
	b := claim("relational_model", "The relational model dates to 1970 and Codd's paper")

	if d.Compare(a, b) {
		t.Error("matching numbers should not contradict")
	}
}

func TestDetector_AntonymPair(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("consensus", "Raft leader election is synchronous with the heartbeat")
	b := claim("consensus", "Raft leader election is asynchronous with the heartbeat")

	if !d.Compare(a, b) {
		t.Error("expected antonym pair to contradict")
	}
}

func TestDetector_ConfiguredAntonyms(t *testing.T) {
	d := NewDetector(0, map[string]string{"strict": "eventual"})

	a := claim("replication", "The system offers strict consistency")
	b := claim("replication", "The system offers eventual consistency")

	if !d.Compare(a, b) {
		t.Error("expected configured antonym pair to contradict")
	}
	// Lookup works from either term of the pair.
	if !d.Compare(b, a) {
		t.Error("expected configured antonym pair to contradict in reverse")
	}
}

func TestDetector_DifferentSubjects(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("concurrency_control", "Two-phase locking guarantees serializability")
	b := claim("isolation_levels", "Two-phase locking does not guarantee serializability")

	if d.Compare(a, b) {
		t.Error("claims on different subjects never contradict")
	}
}

func TestDetector_Symmetric(t *testing.T) {
	d := NewDetector(0, nil)

	pairs := [][2]*domain.Claim{
		{
			claim("concurrency_control", "Two-phase locking guarantees serializability"),
			claim("concurrency_control", "Two-phase locking does not guarantee serializability"),
		},
		{
			claim("relational_model", "The relational model was published in 1970 by Codd"),
			claim("relational_model", "The relational model was published in 1969 by Codd"),
		},
		{
			claim("consensus", "Consensus improves throughput under batching"),
			claim("consensus", "Consensus worsens throughput under batching"),
		},
		{
			claim("consensus", "Paxos tolerates minority failures"),
			claim("consensus", "Raft elects a leader per term"),
		},
	}
	for i, p := range pairs {
		if d.Compare(p[0], p[1]) != d.Compare(p[1], p[0]) {
			t.Errorf("pair %d: Compare is not symmetric", i)
		}
	}
}

func TestDetector_UnrelatedClaimsDoNotContradict(t *testing.T) {
	d := NewDetector(0, nil)

	a := claim("relational_model", "Relational algebra operates on sets of tuples")
	b := claim("relational_model", "Normalization reduces redundancy across relations")

	if d.Compare(a, b) {
		t.Error("compatible claims should not contradict")
	}
}
