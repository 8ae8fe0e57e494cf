package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/troian/healthcheck"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/participant"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/systree"
)

type httpServer struct {
	mux    *http.ServeMux
	server *http.Server
}

// Mux ...
func (h *httpServer) Mux() *http.ServeMux {
	return h.mux
}

// Addr ...
func (h *httpServer) Addr() string {
	return h.server.Addr
}

type appContext struct {
	httpDefaultMux string
	httpServers    sync.Map
	healthHandler  healthcheck.Handler
	participant    *participant.Participant

	treeLock sync.RWMutex
	tree     systree.Provider
}

var _ participant.Listener = (*appContext)(nil)
var _ discovery.CollisionListener = (*appContext)(nil)
var _ discovery.DegradedListener = (*appContext)(nil)

// GetHTTPServer ...
func (ctx *appContext) GetHTTPServer(port string) *httpServer {
	if port == "" {
		port = ctx.httpDefaultMux
	}

	srv := &httpServer{
		mux: http.NewServeMux(),
	}

	srv.server = &http.Server{
		Addr:    ":" + port,
		Handler: srv.mux,
	}

	if actual, ok := ctx.httpServers.LoadOrStore(port, srv); ok {
		srv = actual.(*httpServer)
	}

	return srv
}

func (ctx *appContext) configureHealth() {
	ctx.healthHandler = healthcheck.NewHandler()

	_ = ctx.healthHandler.AddLivenessCheck("participant", func() error {
		if ctx.participant == nil {
			return errors.New("participant not created")
		}

		if ctx.participant.State() == discovery.StateShuttingDown {
			return errors.New("participant shutting down")
		}

		return nil
	})

	_ = ctx.healthHandler.AddReadinessCheck("discovery", func() error {
		if ctx.participant == nil {
			return errors.New("participant not created")
		}

		if st := ctx.participant.State(); st != discovery.StateOperational {
			return errors.New("discovery " + st.String())
		}

		return nil
	})

	mux := ctx.GetHTTPServer("").Mux()
	mux.HandleFunc("/live", ctx.healthHandler.LiveEndpoint)
	mux.HandleFunc("/ready", ctx.healthHandler.ReadyEndpoint)
}

func (ctx *appContext) setTree(t systree.Provider) {
	ctx.treeLock.Lock()
	ctx.tree = t
	ctx.treeLock.Unlock()
}

func (ctx *appContext) getTree() systree.Provider {
	ctx.treeLock.RLock()
	defer ctx.treeLock.RUnlock()

	return ctx.tree
}

func (ctx *appContext) OnMatch(local, remote guid.GUID, _ qos.Policies) {
	logger.Debugf("matched %s <-> %s", local, remote)

	if t := ctx.getTree(); t != nil {
		t.Matches().Matched()
	}
}

func (ctx *appContext) OnUnmatch(local, remote guid.GUID, reason discovery.Reason) {
	logger.Debugf("unmatched %s <-> %s: %s", local, remote, reason)

	if t := ctx.getTree(); t != nil {
		t.Matches().Unmatched()
	}
}

func (ctx *appContext) OnIncompatibleQos(local guid.GUID, failed qos.PolicyID) {
	logger.Warnf("endpoint %s: incompatible qos %s", local, failed)
}

func (ctx *appContext) OnLivelinessChanged(g guid.GUID, alive bool) {
	t := ctx.getTree()
	if t == nil {
		return
	}

	if alive {
		t.Liveliness().Alive()
	} else {
		t.Liveliness().Lost()
	}
}

func (ctx *appContext) OnPrefixCollision(prefix guid.Prefix, err error) {
	logger.Errorw("participant prefix collision", zap.Stringer("prefix", prefix), zap.Error(err))
}

func (ctx *appContext) OnDiscoveryDegraded(what string) {
	logger.Warn("discovery degraded: ", what)
}

// publishTree writes systree values as samples of writer
func publishTree(w *participant.DataWriter) systree.PublishFunc {
	return func(topic string, payload []byte) error {
		msg := make([]byte, 0, len(topic)+1+len(payload))
		msg = append(msg, topic...)
		msg = append(msg, 0)
		msg = append(msg, payload...)

		_, err := w.Write(msg)
		return err
	}
}

func (ctx *appContext) runTree(c context.Context, w *participant.DataWriter) {
	t := ctx.getTree()
	if t == nil || w == nil {
		return
	}

	go func() {
		if err := t.Run(c, publishTree(w)); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("systree publish", zap.Error(err))
		}
	}()
}
