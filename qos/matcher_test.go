package qos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateDefaults(t *testing.T) {
	w := DefaultWriter()
	r := DefaultReader()

	require.Equal(t, Compatible, Evaluate(&w, &r))
}

func TestEvaluateSymmetryBreaking(t *testing.T) {
	w := DefaultWriter()
	w.Reliability = BestEffort

	r := DefaultReader()
	r.Reliability = Reliable

	v := Evaluate(&w, &r)
	require.False(t, v.Compatible)
	require.Equal(t, PolicyReliability, v.Failed)

	// roles swapped
	v = Evaluate(&r, &w)
	require.True(t, v.Compatible)
}

func TestEvaluateFirstFailureWins(t *testing.T) {
	w := DefaultWriter()
	w.Durability = Volatile
	w.Ownership = Exclusive
	w.Deadline = time.Second

	r := DefaultReader()
	r.Durability = TransientLocal
	r.Deadline = 100 * time.Millisecond

	for i := 0; i < 10; i++ {
		require.Equal(t, Incompatible(PolicyDurability), Evaluate(&w, &r))
	}

	require.Equal(t, []PolicyID{PolicyDurability, PolicyDeadline, PolicyOwnership}, EvaluateAll(&w, &r))
}

func TestEvaluatePolicies(t *testing.T) {
	cases := []struct {
		name   string
		writer func(p *Policies)
		reader func(p *Policies)
		failed PolicyID
	}{
		{
			name:   "reliable offered best effort requested",
			writer: func(p *Policies) { p.Reliability = Reliable },
			reader: func(p *Policies) { p.Reliability = BestEffort },
		},
		{
			name:   "persistent offered transient requested",
			writer: func(p *Policies) { p.Durability = Persistent },
			reader: func(p *Policies) { p.Durability = Transient },
		},
		{
			name:   "transient offered persistent requested",
			writer: func(p *Policies) { p.Durability = Transient },
			reader: func(p *Policies) { p.Durability = Persistent },
			failed: PolicyDurability,
		},
		{
			name:   "presentation scope",
			writer: func(p *Policies) { p.Presentation.Scope = ScopeInstance },
			reader: func(p *Policies) { p.Presentation.Scope = ScopeTopic },
			failed: PolicyPresentation,
		},
		{
			name:   "presentation coherent required",
			writer: func(p *Policies) { p.Presentation.Scope = ScopeGroup },
			reader: func(p *Policies) { p.Presentation.Coherent = true },
			failed: PolicyPresentation,
		},
		{
			name:   "presentation ordered offered",
			writer: func(p *Policies) { p.Presentation.Ordered = true },
			reader: func(p *Policies) { p.Presentation.Ordered = true },
		},
		{
			name:   "infinite deadline offered finite requested",
			writer: func(p *Policies) {},
			reader: func(p *Policies) { p.Deadline = time.Second },
			failed: PolicyDeadline,
		},
		{
			name:   "finite deadline offered infinite requested",
			writer: func(p *Policies) { p.Deadline = time.Second },
			reader: func(p *Policies) {},
		},
		{
			name:   "latency budget too large",
			writer: func(p *Policies) { p.LatencyBudget = 2 * time.Second },
			reader: func(p *Policies) { p.LatencyBudget = time.Second },
			failed: PolicyLatencyBudget,
		},
		{
			name:   "liveliness kind",
			writer: func(p *Policies) { p.Liveliness.Kind = Automatic },
			reader: func(p *Policies) { p.Liveliness.Kind = ManualByParticipant },
			failed: PolicyLiveliness,
		},
		{
			name:   "liveliness lease",
			writer: func(p *Policies) { p.Liveliness = Liveliness{Kind: ManualByTopic, Lease: 5 * time.Second} },
			reader: func(p *Policies) { p.Liveliness = Liveliness{Kind: ManualByTopic, Lease: time.Second} },
			failed: PolicyLiveliness,
		},
		{
			name:   "ownership differs",
			writer: func(p *Policies) { p.Ownership = Shared },
			reader: func(p *Policies) { p.Ownership = Exclusive },
			failed: PolicyOwnership,
		},
		{
			name:   "destination order",
			writer: func(p *Policies) { p.DestinationOrder = ByReceptionTimestamp },
			reader: func(p *Policies) { p.DestinationOrder = BySourceTimestamp },
			failed: PolicyDestinationOrder,
		},
		{
			name:   "partition disjoint",
			writer: func(p *Policies) { p.Partition = []string{"a"} },
			reader: func(p *Policies) { p.Partition = []string{"b"} },
			failed: PolicyPartition,
		},
		{
			name:   "partition default vs named",
			writer: func(p *Policies) {},
			reader: func(p *Policies) { p.Partition = []string{"b"} },
			failed: PolicyPartition,
		},
		{
			name:   "partition wildcard",
			writer: func(p *Policies) { p.Partition = []string{"sensors/*"} },
			reader: func(p *Policies) { p.Partition = []string{"x", "sensors/temp"} },
		},
		{
			name:   "partition wildcard on reader",
			writer: func(p *Policies) { p.Partition = []string{"sensors/temp"} },
			reader: func(p *Policies) { p.Partition = []string{"sensors/t?mp"} },
		},
		{
			name:   "partition wildcards never match each other",
			writer: func(p *Policies) { p.Partition = []string{"A*"} },
			reader: func(p *Policies) { p.Partition = []string{"*"} },
			failed: PolicyPartition,
		},
		{
			name:   "partition identical wildcards",
			writer: func(p *Policies) { p.Partition = []string{"A*"} },
			reader: func(p *Policies) { p.Partition = []string{"A*"} },
		},
		{
			name:   "history not matched",
			writer: func(p *Policies) { p.History = History{Kind: KeepLast, Depth: 1} },
			reader: func(p *Policies) { p.History = History{Kind: KeepAll} },
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := DefaultWriter()
			r := DefaultReader()
			c.writer(&w)
			c.reader(&r)

			v := Evaluate(&w, &r)
			if c.failed == PolicyInvalid {
				require.True(t, v.Compatible, v.String())
			} else {
				require.False(t, v.Compatible)
				require.Equal(t, c.failed, v.Failed)
			}
		})
	}
}

func TestPoliciesCloneEqual(t *testing.T) {
	p := DefaultWriter()
	p.Partition = []string{"a", "b"}
	p.UserData = []byte{1, 2}

	c := p.Clone()
	require.True(t, p.Equal(&c))

	c.Partition[0] = "z"
	require.Equal(t, "a", p.Partition[0])
	require.False(t, p.Equal(&c))
}

func TestPolicyIDString(t *testing.T) {
	require.Equal(t, "RELIABILITY", PolicyReliability.String())
	require.Equal(t, "PARTITION", PolicyPartition.String())
	require.Equal(t, "INVALID", PolicyID(99).String())
}
