package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/persistence/types"
)

var testWriter = guid.New(guid.Prefix{0x01, 0x56, 1}, guid.BuildEntityID(guid.KindUserWriter, false, 1))

func providers(t *testing.T) map[string]persistenceTypes.ProviderConfig {
	return map[string]persistenceTypes.ProviderConfig{
		"mem":  &persistenceTypes.MemConfig{},
		"bolt": &persistenceTypes.BoltDBConfig{File: filepath.Join(t.TempDir(), "dds.db")},
	}
}

func collect(t *testing.T, h persistenceTypes.History, w guid.GUID) []uint64 {
	var seqs []uint64

	require.NoError(t, h.ForEach(w, func(s persistenceTypes.Sample) error {
		seqs = append(seqs, s.Sequence)
		return nil
	}))

	return seqs
}

func TestHistory(t *testing.T) {
	for name, cfg := range providers(t) {
		t.Run(name, func(t *testing.T) {
			p, err := New(cfg)
			require.NoError(t, err)

			h, err := p.History()
			require.NoError(t, err)

			for _, seq := range []uint64{3, 1, 2, 5, 4} {
				require.NoError(t, h.Store(testWriter, persistenceTypes.Sample{Sequence: seq, Timestamp: int64(seq), Payload: []byte{byte(seq)}}))
			}

			require.Equal(t, []uint64{1, 2, 3, 4, 5}, collect(t, h, testWriter))

			require.NoError(t, h.Store(testWriter, persistenceTypes.Sample{Sequence: 2, Payload: []byte("replaced")}))

			var payload []byte
			require.NoError(t, h.ForEach(testWriter, func(s persistenceTypes.Sample) error {
				if s.Sequence == 2 {
					payload = s.Payload
				}
				return nil
			}))
			require.Equal(t, []byte("replaced"), payload)

			require.NoError(t, h.Trim(testWriter, 2))
			require.Equal(t, []uint64{4, 5}, collect(t, h, testWriter))

			writers, err := h.Writers()
			require.NoError(t, err)
			require.Equal(t, []guid.GUID{testWriter}, writers)

			require.NoError(t, h.Delete(testWriter))
			require.Empty(t, collect(t, h, testWriter))

			require.Equal(t, persistenceTypes.ErrInvalidArgs, h.Store(testWriter, persistenceTypes.Sample{}))

			sys, err := p.System()
			require.NoError(t, err)

			_, err = sys.GetInfo()
			require.Equal(t, persistenceTypes.ErrNotInitialized, err)

			require.NoError(t, sys.SetInfo(&persistenceTypes.SystemState{Version: "v1", Domain: 7}))
			st, err := sys.GetInfo()
			require.NoError(t, err)
			require.Equal(t, uint32(7), st.Domain)

			require.NoError(t, p.Shutdown())

			_, err = p.History()
			require.Equal(t, persistenceTypes.ErrNotOpen, err)
		})
	}
}

func TestBoltReopen(t *testing.T) {
	cfg := &persistenceTypes.BoltDBConfig{File: filepath.Join(t.TempDir(), "dds.db")}

	p, err := New(cfg)
	require.NoError(t, err)

	h, err := p.History()
	require.NoError(t, err)
	require.NoError(t, h.Store(testWriter, persistenceTypes.Sample{Sequence: 1, Payload: []byte("a")}))
	require.NoError(t, p.Shutdown())

	p, err = New(cfg)
	require.NoError(t, err)
	defer p.Shutdown() // nolint: errcheck

	h, err = p.History()
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, collect(t, h, testWriter))
}

func TestUnknownProvider(t *testing.T) {
	_, err := New(struct{}{})
	require.Equal(t, persistenceTypes.ErrUnknownProvider, err)
}
