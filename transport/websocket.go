package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/metrics"
)

// HeaderLocator carries locator of dialing participant
const HeaderLocator = "X-Volantdds-Locator"

const subProtocol = "volantdds"

// ConfigWS websocket transport
type ConfigWS struct {
	// Listen address of websocket server. Empty runs client only transport
	Listen string

	// Path served by websocket server
	Path string

	// Peers websocket URLs dialed and kept connected
	Peers []string

	// TLS enables wss server
	TLS *tls.Config

	// RetryInterval between dial attempts
	RetryInterval time.Duration

	// QueueSize of outbound messages per link. Messages beyond it are dropped
	QueueSize int

	// WriteTimeout of single frame write. Link is closed once it expires
	WriteTimeout time.Duration

	Stat metrics.Bytes
}

// ErrQueueFull outbound queue of link is full, message dropped
var ErrQueueFull = errors.New("transport: outbound queue full")

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

type link interface {
	write(payload []byte, deadline time.Time) error
	close() error
}

type serverLink struct {
	lock sync.Mutex
	conn net.Conn
}

func (l *serverLink) write(payload []byte, deadline time.Time) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return wsutil.WriteServerBinary(l.conn, payload)
}

func (l *serverLink) close() error {
	return l.conn.Close()
}

type clientLink struct {
	lock sync.Mutex
	conn *websocket.Conn
}

func (l *clientLink) write(payload []byte, deadline time.Time) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return l.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (l *clientLink) close() error {
	return l.conn.Close()
}

// outLink queues frames of one peer and writes them from own goroutine,
// senders never wait on the network
type outLink struct {
	link  link
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (o *outLink) enqueue(payload []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	select {
	case o.queue <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// flush waits until queued frames are picked by writer or deadline passes
func (o *outLink) flush(deadline time.Time) {
	for len(o.queue) > 0 && time.Now().Before(deadline) {
		select {
		case <-o.done:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (o *outLink) close() {
	o.once.Do(func() {
		close(o.done)
		_ = o.link.close()
	})
}

// WebSocket transport. Accepts peers with gobwas upgrader and dials
// configured peers with gorilla dialer
type WebSocket struct {
	base
	http    *http.Server
	up      gws.HTTPUpgrader
	dialer  websocket.Dialer
	path    string
	locator string
	retry   time.Duration
	qSize   int
	timeout time.Duration
	cancel  context.CancelFunc

	linksLock sync.RWMutex
	links     map[string]*outLink
}

var _ Provider = (*WebSocket)(nil)

// NewWebSocket starts server if requested and dials peers
func NewWebSocket(c *ConfigWS) (*WebSocket, error) {
	w := &WebSocket{
		path:    c.Path,
		retry:   c.RetryInterval,
		qSize:   c.QueueSize,
		timeout: c.WriteTimeout,
		links:   make(map[string]*outLink),
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			Subprotocols:     []string{subProtocol},
		},
	}

	if len(w.path) == 0 {
		w.path = "/"
	} else if w.path[0] != '/' {
		w.path = "/" + w.path
	}

	if w.retry <= 0 {
		w.retry = time.Second
	}

	if w.qSize <= 0 {
		w.qSize = defaultQueueSize
	}

	if w.timeout <= 0 {
		w.timeout = defaultWriteTimeout
	}

	var ln net.Listener

	if len(c.Listen) != 0 {
		var err error
		if ln, err = net.Listen("tcp4", c.Listen); err != nil {
			return nil, err
		}

		scheme := "ws://"
		if c.TLS != nil {
			scheme = "wss://"
			ln = tls.NewListener(ln, c.TLS)
			w.dialer.TLSClientConfig = c.TLS
		}

		addr := ln.Addr().(*net.TCPAddr)
		w.locator = scheme + advertisedAddr(&net.UDPAddr{IP: addr.IP, Port: addr.Port}) + w.path
	} else {
		w.locator = "ws://client/" + uuid.New().String()
	}

	w.init(configuration.GetLogger().Named("transport").With(loggerLocator(w.locator)), c.Stat)

	// subprotocol is prevalidated by ServeHTTP
	w.up.Protocol = func(string) bool {
		return true
	}

	var ctx context.Context
	ctx, w.cancel = context.WithCancel(context.Background())

	if ln != nil {
		w.http = &http.Server{
			Handler:           w,
			ReadHeaderTimeout: 5 * time.Second,
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.http.Serve(ln); err != nil && err != http.ErrServerClosed {
				w.log.Error("serve", zap.Error(err))
			}
		}()
	}

	for _, p := range c.Peers {
		w.wg.Add(1)
		go w.dialLoop(ctx, p)
	}

	return w, nil
}

// ServeHTTP upgrades inbound peers
func (w *WebSocket) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != w.path {
		http.NotFound(rw, r)
		return
	}

	if !strings.Contains(r.Header.Get("Sec-WebSocket-Protocol"), subProtocol) {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("unsupported \"Sec-WebSocket-Protocol\""))
		return
	}

	from := r.Header.Get(HeaderLocator)
	if len(from) == 0 {
		from = "ws://" + r.RemoteAddr
	}

	conn, _, _, err := w.up.Upgrade(r, rw)
	if err != nil {
		w.log.Error("upgrade", zap.Error(err))
		return
	}

	l := w.addLink(from, &serverLink{conn: conn})
	if l == nil {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.removeLink(from, l)

		for {
			data, err := wsutil.ReadClientBinary(conn)
			if err != nil {
				return
			}

			w.deliver(data, from)
		}
	}()
}

func (w *WebSocket) dialLoop(ctx context.Context, peer string) {
	defer w.wg.Done()

	header := http.Header{}
	header.Set(HeaderLocator, w.locator)

	for {
		conn, _, err := w.dialer.DialContext(ctx, peer, header)
		if err != nil {
			if !w.closed() {
				w.log.Debug("dial", zap.String("peer", peer), zap.Error(err))
			}
		} else if l := w.addLink(peer, &clientLink{conn: conn}); l != nil {
			for {
				mt, data, e := conn.ReadMessage()
				if e != nil {
					break
				}

				if mt == websocket.BinaryMessage {
					w.deliver(data, peer)
				}
			}

			w.removeLink(peer, l)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry):
		}
	}
}

// addLink registers connection of peer and starts its writer.
// Returns nil if transport is closed
func (w *WebSocket) addLink(key string, l link) *outLink {
	o := &outLink{
		link:  l,
		queue: make(chan []byte, w.qSize),
		done:  make(chan struct{}),
	}

	w.linksLock.Lock()

	if w.closed() {
		w.linksLock.Unlock()
		_ = l.close()
		return nil
	}

	prev := w.links[key]
	w.links[key] = o
	w.wg.Add(1)
	w.linksLock.Unlock()

	go w.writeLoop(key, o)

	if prev != nil {
		prev.close()
	}

	return o
}

func (w *WebSocket) removeLink(key string, o *outLink) {
	w.linksLock.Lock()
	if w.links[key] == o {
		delete(w.links, key)
	}
	w.linksLock.Unlock()

	o.close()
}

func (w *WebSocket) writeLoop(key string, o *outLink) {
	defer w.wg.Done()

	for {
		select {
		case <-o.done:
			return
		case payload := <-o.queue:
			if err := o.link.write(payload, time.Now().Add(w.timeout)); err != nil {
				w.log.Debug("write", zap.String("peer", key), zap.Error(err))
				// reader side notices closed connection and removes link
				o.close()
				return
			}

			w.stat.OnSent(len(payload))
		}
	}
}

// Send queues payload to peer or to every connected peer. Frames are written
// asynchronously, full queue drops the frame and reports ErrQueueFull
func (w *WebSocket) Send(ctx context.Context, payload []byte, dest string) error {
	if w.closed() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	w.linksLock.RLock()

	var targets []*outLink
	if len(dest) == 0 {
		for _, l := range w.links {
			targets = append(targets, l)
		}
	} else if l, ok := w.links[dest]; ok {
		targets = append(targets, l)
	}

	w.linksLock.RUnlock()

	if len(dest) != 0 && len(targets) == 0 {
		return ErrUnknownDestination
	}

	var err error

	for _, l := range targets {
		if e := l.enqueue(payload); e != nil {
			err = e
		}
	}

	return err
}

// Locator of websocket server
func (w *WebSocket) Locator() string {
	return w.locator
}

// Peers number of connected links
func (w *WebSocket) Peers() int {
	w.linksLock.RLock()
	defer w.linksLock.RUnlock()

	return len(w.links)
}

// Close server, links and dialers
func (w *WebSocket) Close() error {
	if !w.shutdown() {
		return nil
	}

	w.cancel()

	var err error
	if w.http != nil {
		err = w.http.Close()
	}

	w.linksLock.Lock()
	links := w.links
	w.links = make(map[string]*outLink)
	w.linksLock.Unlock()

	// frames queued before close are written until deadline
	deadline := time.Now().Add(w.timeout)
	for _, l := range links {
		l.flush(deadline)
	}

	for _, l := range links {
		l.close()
	}

	w.wg.Wait()

	return err
}

func (w *WebSocket) String() string {
	return "ws(" + w.locator + ", peers: " + strconv.Itoa(w.Peers()) + ")"
}
