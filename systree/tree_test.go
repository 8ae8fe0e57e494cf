package systree

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/session"
	"github.com/VolantMQ/volantdds/topics"
)

var prefix = guid.Prefix{0x01, 0x56, 0x01}

type fakeDiscovery struct {
	participants []discovery.ParticipantInfo
	endpoints    []discovery.EndpointInfo
	matches      []discovery.MatchInfo
}

func (f *fakeDiscovery) State() discovery.State                    { return discovery.StateOperational }
func (f *fakeDiscovery) Participants() []discovery.ParticipantInfo { return f.participants }
func (f *fakeDiscovery) Endpoints() []discovery.EndpointInfo       { return f.endpoints }
func (f *fakeDiscovery) Matches() []discovery.MatchInfo            { return f.matches }
func (f *fakeDiscovery) Pending() int                              { return 0 }

type fakeSessions []session.Info

func (f fakeSessions) Sessions() []session.Info { return f }

func newFixture(t *testing.T) (Provider, *clock.Mock, guid.GUID, guid.GUID) {
	t.Helper()

	clk := clock.NewMock()

	w := guid.New(prefix, guid.BuildEntityID(guid.KindUserWriter, false, 1))
	r := guid.New(prefix, guid.BuildEntityID(guid.KindUserReader, false, 2))

	d := &fakeDiscovery{
		participants: []discovery.ParticipantInfo{{
			Prefix:    prefix,
			Instance:  uuid.New(),
			Domain:    7,
			Lease:     10 * time.Second,
			Locators:  []string{"loop://1"},
			Endpoints: []guid.GUID{w, r},
			Local:     true,
		}},
		endpoints: []discovery.EndpointInfo{
			{GUID: w, Topic: "Square", TypeName: "ShapeType", QoS: qos.DefaultWriter(), Matched: []guid.GUID{r}, Local: true},
			{GUID: r, Topic: "Square", TypeName: "ShapeType", QoS: qos.DefaultReader(), Matched: []guid.GUID{w}, Local: true},
		},
		matches: []discovery.MatchInfo{{Writer: w, Reader: r, Since: clk.Now()}},
	}

	reg := topics.NewRegistry()
	reg.Add("Square", "ShapeType", w, true)
	reg.Add("Square", "ShapeType", r, true)

	tr, err := NewTree(Config{
		Base:         "$SYS",
		Capabilities: Capabilities{Vendor: guid.VendorVolant.String(), Domain: 7, Transports: []string{"loopback"}},
		Discovery:    d,
		Topics:       reg,
		Sessions:     fakeSessions{{Writer: w, Reader: r, Reliable: true, LocalWriter: true, Last: 3, Acked: 3}},
		Interval:     time.Second,
		Clock:        clk,
		Log:          zap.NewNop(),
	})
	require.NoError(t, err)

	return tr, clk, w, r
}

func TestNewTreeRequiresDiscovery(t *testing.T) {
	_, err := NewTree(Config{})
	require.Equal(t, ErrInvalidArgs, err)
}

func TestBuiltinTopics(t *testing.T) {
	tr, _, w, r := newFixture(t)

	val, ok := tr.Get("$SYS/" + TopicParticipant)
	require.True(t, ok)

	var parts []ParticipantData
	require.NoError(t, json.Unmarshal(val, &parts))
	require.Len(t, parts, 1)
	require.Equal(t, prefix.String(), parts[0].Prefix)
	require.Equal(t, "0156", parts[0].Vendor)
	require.Equal(t, uint32(7), parts[0].Domain)
	require.Equal(t, 2, parts[0].Endpoints)

	val, ok = tr.Get("$SYS/" + TopicPublication)
	require.True(t, ok)

	var pubs []EndpointData
	require.NoError(t, json.Unmarshal(val, &pubs))
	require.Len(t, pubs, 1)
	require.Equal(t, w.String(), pubs[0].GUID)
	require.Equal(t, "USER_WRITER", pubs[0].Kind)
	require.Equal(t, "RELIABLE", pubs[0].QoS.Reliability)
	require.Equal(t, []string{r.String()}, pubs[0].Matched)

	val, ok = tr.Get("$SYS/" + TopicSubscription)
	require.True(t, ok)

	var subs []EndpointData
	require.NoError(t, json.Unmarshal(val, &subs))
	require.Len(t, subs, 1)
	require.Equal(t, "BEST_EFFORT", subs[0].QoS.Reliability)

	val, ok = tr.Get("$SYS/" + TopicTopic)
	require.True(t, ok)

	var tps []TopicData
	require.NoError(t, json.Unmarshal(val, &tps))
	require.Equal(t, []TopicData{{Name: "Square", Types: []string{"ShapeType"}, Writers: 1, Readers: 1, Consistent: true}}, tps)

	val, ok = tr.Get("$SYS/" + TopicSessions)
	require.True(t, ok)

	var ss []SessionData
	require.NoError(t, json.Unmarshal(val, &ss))
	require.Len(t, ss, 1)
	require.Equal(t, "writer", ss[0].Side)
	require.Equal(t, uint64(3), ss[0].Acked)

	val, ok = tr.Get("$SYS/" + TopicState)
	require.True(t, ok)
	require.Contains(t, string(val), "OPERATIONAL")

	_, ok = tr.Get("$SYS/unknown")
	require.False(t, ok)
}

func TestStats(t *testing.T) {
	tr, _, _, _ := newFixture(t)

	tr.Matches().Matched()
	tr.Matches().Matched()
	tr.Matches().Unmatched()

	require.Equal(t, uint64(1), tr.Matches().Current())
	require.Equal(t, uint64(2), tr.Matches().Max())

	val, ok := tr.Get("$SYS/stats/matches/max")
	require.True(t, ok)
	require.Equal(t, "2", string(val))

	tr.Liveliness().Lost()
	require.Equal(t, uint64(0), tr.Liveliness().Current())

	tr.Liveliness().Alive()
	val, ok = tr.Get("$SYS/stats/alive/current")
	require.True(t, ok)
	require.Equal(t, "1", string(val))
}

func TestServerValues(t *testing.T) {
	tr, clk, _, _ := newFixture(t)

	val, ok := tr.Get("$SYS/version")
	require.True(t, ok)
	require.Equal(t, Version, string(val))

	clk.Add(time.Minute)

	val, ok = tr.Get("$SYS/uptime")
	require.True(t, ok)
	require.Equal(t, "1m0s", string(val))

	val, ok = tr.Get("$SYS/capabilities")
	require.True(t, ok)

	var caps Capabilities
	require.NoError(t, json.Unmarshal(val, &caps))
	require.Equal(t, uint8(1), caps.ProtocolVersion)
	require.Equal(t, []string{"loopback"}, caps.Transports)
}

func TestHandler(t *testing.T) {
	tr, _, _, _ := newFixture(t)

	srv := httptest.NewServer(http.StripPrefix("/systree", tr.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/systree/")
	require.NoError(t, err)

	var list []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.NoError(t, resp.Body.Close())
	require.Contains(t, list, "$SYS/"+TopicParticipant)
	require.Len(t, list, len(tr.Values()))

	resp, err = http.Get(srv.URL + "/systree/$SYS/" + TopicMatches)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var matches []MatchData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&matches))
	require.NoError(t, resp.Body.Close())
	require.Len(t, matches, 1)

	resp, err = http.Get(srv.URL + "/systree/$SYS/nothing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Post(srv.URL+"/systree/", "text/plain", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestRunPublishesEveryValue(t *testing.T) {
	tr, clk, _, _ := newFixture(t)

	var lock sync.Mutex
	seen := make(map[string][]byte)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() {
		done <- tr.Run(ctx, func(topic string, payload []byte) error {
			lock.Lock()
			seen[topic] = payload
			lock.Unlock()

			return nil
		})
	}()

	require.Eventually(t, func() bool {
		clk.Add(time.Second)

		lock.Lock()
		defer lock.Unlock()

		return len(seen) == len(tr.Values())
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
