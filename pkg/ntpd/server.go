package ntpd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("ntpd: already running")

type Config struct {
	// BindAddrs lists the UDP addresses to answer on; each gets its
	// own listener goroutine. Defaults to ["0.0.0.0:123"].
	BindAddrs []string

	// Network selects the socket family: "udp", "udp4" or "udp6".
	Network string

	// Clock defaults to the system UTC clock.
	Clock Clock

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Debug additionally dumps every received and sent packet.
	Debug bool

	// MetricsAddr, if set, serves prometheus metrics over HTTP.
	MetricsAddr string

	// RateLimitPerSecond enables a per-IP token bucket limiter.
	// Zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// EventBuffer is the channel buffer per subscriber.
	EventBuffer int
	// HistorySize is how many recent events are kept.
	HistorySize int
}

func (c Config) normalize() Config {
	out := c
	if len(out.BindAddrs) == 0 {
		out.BindAddrs = []string{"0.0.0.0:123"}
	}
	if out.Network == "" {
		out.Network = "udp"
	}
	if out.Clock == nil {
		out.Clock = systemClock{}
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = 128
	}
	if out.HistorySize <= 0 {
		out.HistorySize = 500
	}
	if out.RateLimitBurst <= 0 {
		out.RateLimitBurst = 5
	}
	return out
}

// Server answers NTP client queries with syntactically valid stratum-8
// responses derived from the local wall clock. It keeps no state
// between datagrams.
type Server struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	conns   []*net.UDPConn
	running bool

	hub     *eventHub
	metrics *metrics
	stats   *wireStats
	limiter *ipLimiter

	metricsSrv *http.Server

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Server {
	cfg = cfg.normalize()
	return &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		hub:     newEventHub(cfg.HistorySize),
		metrics: newMetrics(),
		stats:   newWireStats(),
		limiter: newIPLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		stopCh:  make(chan struct{}),
	}
}

// Start binds every configured address and spawns one listener loop
// per socket. Failure to bind any address is fatal: sockets already
// bound are closed and the error is returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.mu.Unlock()

	conns := make([]*net.UDPConn, 0, len(s.cfg.BindAddrs))
	for _, addr := range s.cfg.BindAddrs {
		udpAddr, err := net.ResolveUDPAddr(s.cfg.Network, addr)
		if err == nil {
			var conn *net.UDPConn
			conn, err = net.ListenUDP(s.cfg.Network, udpAddr)
			if err == nil {
				conns = append(conns, conn)
				continue
			}
		}
		for _, c := range conns {
			_ = c.Close()
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conns = conns
	s.metrics.reset(s.cfg.Clock.Now())
	s.mu.Unlock()

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.stats.Handler())
		srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		s.mu.Lock()
		s.metricsSrv = srv
		s.mu.Unlock()
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Warn("metrics listener failed", zap.Error(err))
			}
		}()
		s.logger.Info("serving metrics", zap.String("addr", s.cfg.MetricsAddr))
	}

	for _, conn := range conns {
		s.logger.Info("listening", zap.String("addr", conn.LocalAddr().String()))
		s.wg.Add(1)
		go s.serveLoop(ctx, conn)
	}
	return nil
}

// Addrs returns the bound local addresses while running, otherwise the
// configured bind addresses.
func (s *Server) Addrs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.conns) > 0 {
		out := make([]string, len(s.conns))
		for i, c := range s.conns {
			out[i] = c.LocalAddr().String()
		}
		return out
	}
	return s.cfg.BindAddrs
}

func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		conns := s.conns
		s.conns = nil
		metricsSrv := s.metricsSrv
		s.metricsSrv = nil
		s.running = false
		close(s.stopCh)
		s.mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
		if metricsSrv != nil {
			_ = metricsSrv.Close()
		}
	})
}

func (s *Server) Stop() error {
	s.shutdown()
	s.wg.Wait()
	return nil
}

func (s *Server) Subscribe() (<-chan DatagramEvent, func()) {
	return s.hub.subscribe(s.cfg.EventBuffer)
}

func (s *Server) History() []DatagramEvent {
	return s.hub.snapshotHistory()
}

func (s *Server) Metrics() Snapshot {
	return s.metrics.snapshot()
}

// MetricsHandler exposes the prometheus registry for embedding in an
// existing HTTP mux.
func (s *Server) MetricsHandler() http.Handler {
	return s.stats.Handler()
}

// serveLoop drives receive, decode, classify, synthesize and send for
// one socket. The buffer is reused across iterations; the 48-byte
// length check runs before any field is read from it.
func (s *Server) serveLoop(ctx context.Context, conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stopCh:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Receive failures are recoverable; keep serving.
			s.logger.Warn("receive failed", zap.Error(err))
			continue
		}

		receivedAt := s.cfg.Clock.Now()
		localTime := FromTime(receivedAt)

		clientIP := ""
		clientPort := 0
		clientAddr := ""
		if raddr != nil {
			clientIP = raddr.IP.String()
			clientPort = raddr.Port
			clientAddr = raddr.String()
		}

		var rawMode uint8
		if n > 0 {
			rawMode = buf[0] & 0x7
		}
		s.stats.incReceived(rawMode)
		s.metrics.incDatagram(clientIP, receivedAt)

		ev := DatagramEvent{
			At:         receivedAt,
			ClientAddr: clientAddr,
			ClientIP:   clientIP,
			ClientPort: clientPort,
			RawLen:     n,
		}

		if !s.limiter.allow(clientIP, receivedAt) {
			ev.DropReason = DropRateLimited
			s.drop(ev)
			continue
		}

		req, err := DecodePacket(buf[:n], raddr, localTime)
		if err != nil {
			switch {
			case errors.Is(err, ErrPacketTooShort):
				ev.DropReason = DropTooShort
			case errors.Is(err, ErrUnsupportedVersion):
				ev.DropReason = DropBadVersion
			default:
				ev.DropReason = err.Error()
			}
			s.logger.Warn("dropping datagram",
				zap.String("from", clientAddr),
				zap.Int("len", n),
				zap.Error(err))
			s.drop(ev)
			continue
		}

		ev.Version = req.Version
		ev.Mode = req.Mode

		if s.cfg.Debug {
			s.logger.Debug("received", zap.String("from", clientAddr), zap.Object("packet", req))
		}

		resp, ok := req.MakeResponse(s.cfg.Clock)
		if !ok {
			// Not a request; silently ignored per protocol.
			ev.DropReason = DropNotRequest
			s.drop(ev)
			continue
		}

		resp.XmitTime = FromTime(s.cfg.Clock.Now())
		if _, err := conn.WriteToUDP(resp.Encode(), raddr); err != nil {
			ev.DropReason = DropSendError
			s.logger.Warn("send failed",
				zap.String("to", clientAddr),
				zap.Error(err))
			s.drop(ev)
			continue
		}

		if s.cfg.Debug {
			s.logger.Debug("sent", zap.String("to", clientAddr), zap.Object("packet", resp))
		}

		s.stats.incResponse()
		s.metrics.incResponse()
		ev.Responded = true
		s.hub.publish(ev)
	}
}

func (s *Server) drop(ev DatagramEvent) {
	s.stats.incDropped(ev.DropReason)
	s.metrics.incDropped()
	s.hub.publish(ev)
}
