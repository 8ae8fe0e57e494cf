package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/participant"
	"github.com/VolantMQ/volantdds/persistence"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/systree"
	"github.com/VolantMQ/volantdds/transport"
)

var logger *zap.SugaredLogger

// these are provided at compile time
var (
	// GitCommit SHA hash
	GitCommit string

	// GitBranch if any
	GitBranch string

	// GitState repository state
	GitState string

	// GitSummary repository info
	GitSummary string

	// BuildDate build date
	BuildDate string

	// Version application version
	Version string
)

func init() {
	if Version == "" {
		Version = "UNKNOWN"
	}

	if BuildDate == "" {
		BuildDate = "UNKNOWN"
	}
}

func loadTransport(cfg *configuration.TransportConfig, stat metrics.Bytes) (transport.Provider, error) {
	logger.Info("configuring transport: ", cfg.Type)

	switch cfg.Type {
	case "loopback":
		logger.Warn("\tloopback transport reaches participants of this process only")
		return transport.NewBus().Join(stat), nil
	case "udp":
		return transport.NewUDP(&transport.ConfigUDP{
			Listen:    cfg.UDP.Listen,
			Group:     cfg.UDP.Group,
			Interface: cfg.UDP.Interface,
			Loopback:  cfg.UDP.Loopback,
			Peers:     cfg.UDP.Peers,
			Stat:      stat,
		})
	case "ws":
		wsCfg := &transport.ConfigWS{
			Listen:       cfg.WS.Listen,
			Path:         cfg.WS.Path,
			Peers:        cfg.WS.Peers,
			QueueSize:    cfg.WS.QueueSize,
			WriteTimeout: cfg.WS.WriteTimeout.Std(),
			Stat:         stat,
		}

		if cfg.WS.TLS != nil {
			tlsConfig, err := cfg.WS.TLS.LoadConfig()
			if err != nil {
				return nil, errors.Wrap(err, "transport.ws.tls")
			}
			wsCfg.TLS = tlsConfig
		}

		return transport.NewWebSocket(wsCfg)
	default:
		return nil, errors.Wrap(configuration.ErrInvalidTransport, cfg.Type)
	}
}

func loadPersistence(cfg *configuration.PersistenceConfig, domain uint32) (persistenceTypes.Provider, error) {
	logger.Info("configuring persistence: ", cfg.Type)

	var pCfg persistenceTypes.ProviderConfig

	switch cfg.Type {
	case "bolt":
		pCfg = &persistenceTypes.BoltDBConfig{File: cfg.Bolt.File}
	default:
		pCfg = &persistenceTypes.MemConfig{}
	}

	persist, err := persistence.New(pCfg)
	if err != nil {
		return nil, err
	}

	sys, err := persist.System()
	if err != nil {
		_ = persist.Shutdown()
		return nil, err
	}

	state, err := sys.GetInfo()
	switch {
	case err == persistenceTypes.ErrNotInitialized:
		logger.Info("\tno persisted state, initializing")
	case err != nil:
		_ = persist.Shutdown()
		return nil, err
	case state.Domain != domain:
		_ = persist.Shutdown()
		return nil, errors.Errorf("persisted history belongs to domain %d, configured %d", state.Domain, domain)
	default:
		logger.Info("\tpersisted state version: ", state.Version)
	}

	if err = sys.SetInfo(&persistenceTypes.SystemState{Version: Version, Domain: domain}); err != nil {
		_ = persist.Shutdown()
		return nil, err
	}

	return persist, nil
}

func createEndpoints(p *participant.Participant, topics []configuration.TopicConfig) error {
	logger.Info("creating endpoints")

	for i := range topics {
		t := &topics[i]

		q, err := t.Policies()
		if err != nil {
			return err
		}

		switch t.Role {
		case configuration.RoleWriter:
			var w *participant.DataWriter
			if w, err = p.CreateWriter(t.Name, t.Type, q); err != nil {
				return errors.Wrapf(err, "topic %s", t.Name)
			}
			logger.Info("\twriter ", w.GUID(), " topic: ", t.Name, " type: ", t.Type)
		case configuration.RoleReader:
			var r *participant.DataReader
			if r, err = p.CreateReader(t.Name, t.Type, q); err != nil {
				return errors.Wrapf(err, "topic %s", t.Name)
			}
			logger.Info("\treader ", r.GUID(), " topic: ", t.Name, " type: ", t.Type)
		}
	}

	return nil
}

func main() {
	logger = configuration.GetHumanLogger()

	defer func() {
		logger.Info("service stopped")

		if r := recover(); r != nil {
			logger.Panic(r)
		}
	}()

	config, err := configuration.ReadConfig()
	if err != nil {
		logger.Error("read config: ", err.Error())
		return
	}

	if err = configuration.ConfigureLoggers(&config.System.Log); err != nil {
		return
	}

	logger.Info("starting service...")
	logger.Infof("\n\tbuild info:\n"+
		"\t\tcommit : %s\n"+
		"\t\tbranch : %s\n"+
		"\t\tstate  : %s\n"+
		"\t\tsummary: %s\n"+
		"\t\tdate   : %s\n"+
		"\t\tversion: %s\n", GitCommit, GitBranch, GitState, GitSummary, BuildDate, Version)

	logger.Info("working directory: ", configuration.WorkDir)

	ctx := &appContext{
		httpDefaultMux: config.System.HTTP.Port,
	}

	pCfg := &config.Participant

	vendor, err := pCfg.VendorID()
	if err != nil {
		logger.Error("participant vendor: ", err.Error())
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	informer, err := metrics.New(registry, prometheus.Labels{
		"vendor": vendor.String(),
	})
	if err != nil {
		logger.Error("metrics: ", err.Error())
		return
	}

	ctx.GetHTTPServer("").Mux().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))

	tr, err := loadTransport(&config.Transport, informer.Bytes())
	if err != nil {
		logger.Error("loading transport: ", err.Error())
		return
	}

	persist, err := loadPersistence(&config.Persistence, pCfg.Domain)
	if err != nil {
		_ = tr.Close()
		logger.Error("loading persistence: ", err.Error())
		return
	}

	defer func() {
		if e := persist.Shutdown(); e != nil {
			logger.Error("shutdown persistence: ", e.Error())
		}
	}()

	factory := participant.NewFactory(vendor)

	if ctx.participant, err = factory.Create(participant.Config{
		Domain:            pCfg.Domain,
		AnnounceInterval:  pCfg.AnnounceInterval.Std(),
		LeaseDuration:     pCfg.LeaseDuration.Std(),
		HeartbeatInterval: pCfg.HeartbeatInterval.Std(),
		ReplayDepth:       pCfg.Replay.Depth,
		ReplayMaxAge:      pCfg.Replay.MaxAge.Std(),
		Tombstones:        pCfg.Tombstones,
		PendingEndpoints:  pCfg.PendingEndpoints,
		Transport:         tr,
		Persistence:       persist,
		Listener:          ctx,
		Metrics:           informer,
		Log:               configuration.GetLogger().Named("participant"),
	}); err != nil {
		_ = tr.Close()
		logger.Error("participant create: ", err.Error())
		return
	}

	defer func() {
		_ = factory.Shutdown(context.Background())
	}()

	logger.Info("participant created: ", ctx.participant.GUID())

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sCfg := &config.System.Systree; sCfg.Enabled {
		var tree systree.Provider

		if tree, err = systree.NewTree(systree.Config{
			Base: sCfg.Base,
			Capabilities: systree.Capabilities{
				Vendor:       vendor.String(),
				Domain:       pCfg.Domain,
				Transports:   []string{config.Transport.Type},
				Persistence:  config.Persistence.Type,
				ReplayDepth:  pCfg.Replay.Depth,
				ReplayMaxAge: pCfg.Replay.MaxAge.Std().String(),
				Announce:     pCfg.AnnounceInterval.Std().String(),
				Lease:        pCfg.LeaseDuration.Std().String(),
			},
			Discovery: ctx.participant.Discovery(),
			Topics:    ctx.participant.Topics(),
			Sessions:  ctx.participant.Sessions(),
			Interval:  sCfg.Interval.Std(),
			Log:       configuration.GetLogger().Named("systree"),
		}); err != nil {
			logger.Error("systree: ", err.Error())
			return
		}

		ctx.setTree(tree)
		ctx.GetHTTPServer("").Mux().Handle("/systree/", http.StripPrefix("/systree", tree.Handler()))

		if len(sCfg.Topic) != 0 {
			w, e := ctx.participant.CreateWriter(sCfg.Topic, "systree", qos.DefaultWriter())
			if e != nil {
				logger.Error("systree topic: ", e.Error())
				return
			}

			ctx.runTree(runCtx, w)
		}
	}

	if err = createEndpoints(ctx.participant, config.Topics); err != nil {
		logger.Error("endpoints: ", err.Error())
		return
	}

	ctx.configureHealth()

	ctx.httpServers.Range(func(k, v interface{}) bool {
		s := v.(*httpServer)

		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Panic("http server panic", zap.Any("panic", r))
				}
			}()
			logger.Info("starting http server on " + s.server.Addr)
			_ = s.server.ListenAndServe()
			logger.Info("stopped http server on " + s.server.Addr)
		}()
		return true
	})

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	logger.Info("service received signal: ", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err = factory.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown participant: ", err.Error())
	}

	ctx.httpServers.Range(func(k, v interface{}) bool {
		s := v.(*httpServer)
		_ = s.server.Shutdown(shutdownCtx)
		return true
	})
}
