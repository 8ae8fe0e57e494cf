package participant

import (
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/session"
)

var (
	_ discovery.Listener                  = (*Participant)(nil)
	_ discovery.CollisionListener         = (*Participant)(nil)
	_ discovery.InconsistentTopicListener = (*Participant)(nil)
	_ discovery.DegradedListener          = (*Participant)(nil)
	_ session.DeliveryListener            = (*Participant)(nil)
)

// OnMatch opens delivery session before application learns about match
func (p *Participant) OnMatch(local, remote guid.GUID, q qos.Policies) {
	if remote.Prefix == p.prefix && local.Entity.Kind.IsWriter() {
		// local reader session must exist before history replay reaches it
		p.open(remote, local, qos.Policies{}, "")
	}

	locator := ""
	if remote.Prefix != p.prefix {
		if locs := p.engine.Locators(remote.Prefix); len(locs) > 0 {
			locator = locs[0]
		}
	}

	p.open(local, remote, q, locator)

	p.cfg.Listener.OnMatch(local, remote, q)
}

func (p *Participant) open(local, remote guid.GUID, q qos.Policies, locator string) {
	err := p.sessions.Open(local, remote, q, locator)
	if err != nil && err != session.ErrAlreadyExists {
		p.log.Warn("couldn't open session",
			zap.Stringer("local", local),
			zap.Stringer("remote", remote),
			zap.Error(err))
	}
}

// OnUnmatch closes delivery session, pending samples are discarded
func (p *Participant) OnUnmatch(local, remote guid.GUID, reason discovery.Reason) {
	p.sessions.Close(local, remote)

	p.cfg.Listener.OnUnmatch(local, remote, reason)
}

// OnIncompatibleQos forwards to application
func (p *Participant) OnIncompatibleQos(local guid.GUID, failed qos.PolicyID) {
	p.cfg.Listener.OnIncompatibleQos(local, failed)
}

// OnLivelinessChanged forwards to application
func (p *Participant) OnLivelinessChanged(g guid.GUID, alive bool) {
	p.cfg.Listener.OnLivelinessChanged(g, alive)
}

// OnPrefixCollision forwards to application if it cares
func (p *Participant) OnPrefixCollision(prefix guid.Prefix, err error) {
	if l, ok := p.cfg.Listener.(discovery.CollisionListener); ok {
		l.OnPrefixCollision(prefix, err)
	}
}

// OnInconsistentTopic forwards to application if it cares
func (p *Participant) OnInconsistentTopic(local guid.GUID, topic, remoteType string) {
	if l, ok := p.cfg.Listener.(discovery.InconsistentTopicListener); ok {
		l.OnInconsistentTopic(local, topic, remoteType)
	}
}

// OnDiscoveryDegraded forwards to application if it cares
func (p *Participant) OnDiscoveryDegraded(what string) {
	if l, ok := p.cfg.Listener.(discovery.DegradedListener); ok {
		l.OnDiscoveryDegraded(what)
	}
}

// OnSampleLost forwards to application if it cares
func (p *Participant) OnSampleLost(writer, reader guid.GUID, lost []session.Range) {
	if l, ok := p.cfg.Listener.(session.DeliveryListener); ok {
		l.OnSampleLost(writer, reader, lost)
	}
}

// OnDegraded forwards to application if it cares
func (p *Participant) OnDegraded(writer, reader guid.GUID) {
	if l, ok := p.cfg.Listener.(session.DeliveryListener); ok {
		l.OnDegraded(writer, reader)
	}
}
