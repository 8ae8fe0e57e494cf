package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())

	require.Equal(t, "info", c.System.Log.Console.Level)
	require.Equal(t, "8080", c.System.HTTP.Port)
	require.Equal(t, time.Second, c.Participant.AnnounceInterval.Std())
	require.Equal(t, 10*time.Second, c.Participant.LeaseDuration.Std())
	require.Equal(t, 1024, c.Participant.Replay.Depth)
	require.Equal(t, "udp", c.Transport.Type)
	require.Equal(t, "mem", c.Persistence.Type)
	require.True(t, c.System.Systree.Enabled)
	require.Equal(t, "$SYS", c.System.Systree.Base)
	require.Equal(t, 5*time.Second, c.System.Systree.Interval.Std())

	v, err := c.Participant.VendorID()
	require.NoError(t, err)
	require.Equal(t, guid.VendorVolant, v)
}

func TestParseOverlay(t *testing.T) {
	c := DefaultConfig()

	err := Parse([]byte(`
participant:
  vendor: "0103"
  announceInterval: 250ms
transport:
  type: loopback
persistence:
  type: bolt
  bolt:
    file: /tmp/dds.db
topics:
  - name: Square
    type: ShapeType
    role: writer
    qos:
      durability: transient_local
      deadline: 1s
      partition: ["a", "b*"]
      history:
        kind: keep_last
        depth: 10
  - name: Square
    type: ShapeType
    role: reader
    qos:
      reliability: reliable
`), c)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	require.Equal(t, 250*time.Millisecond, c.Participant.AnnounceInterval.Std())
	require.Equal(t, 10*time.Second, c.Participant.LeaseDuration.Std())

	v, err := c.Participant.VendorID()
	require.NoError(t, err)
	require.Equal(t, guid.VendorOCI, v)

	require.Len(t, c.Topics, 2)

	w, err := c.Topics[0].Policies()
	require.NoError(t, err)
	require.Equal(t, qos.Reliable, w.Reliability)
	require.Equal(t, qos.TransientLocal, w.Durability)
	require.Equal(t, time.Second, w.Deadline)
	require.Equal(t, []string{"a", "b*"}, w.Partition)
	require.Equal(t, int32(10), w.History.Depth)

	r, err := c.Topics[1].Policies()
	require.NoError(t, err)
	require.Equal(t, qos.Reliable, r.Reliability)
	require.Equal(t, qos.Volatile, r.Durability)

	require.True(t, qos.Evaluate(&w, &r).Compatible)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"transport", "transport:\n  type: carrier-pigeon\n"},
		{"persistence", "persistence:\n  type: tape\n"},
		{"bolt file", "persistence:\n  type: bolt\n"},
		{"vendor", "participant:\n  vendor: nope\n"},
		{"lease", "participant:\n  announceInterval: 20s\n"},
		{"role", "topics:\n  - name: a\n    type: b\n    role: both\n"},
		{"enum", "topics:\n  - name: a\n    type: b\n    role: reader\n    qos:\n      durability: forever\n"},
		{"missing type", "topics:\n  - name: a\n    role: reader\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			require.NoError(t, Parse([]byte(tc.doc), c))
			require.Error(t, c.Validate())
		})
	}

	c := DefaultConfig()
	require.Error(t, Parse([]byte("participant:\n  leaseDuration: soon\n"), c))
}

func TestConfigureLoggers(t *testing.T) {
	require.NoError(t, ConfigureLoggers(&LogConfig{Console: ConsoleLogConfig{Level: "debug"}}))
	require.NotNil(t, GetLogger())
	require.Error(t, ConfigureLoggers(&LogConfig{Console: ConsoleLogConfig{Level: "loud"}}))
}
