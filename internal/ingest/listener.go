package ingest

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
)

var (
	acceptedConns gm.Counter
	activeConns   gm.Gauge
)

func init() {
	acceptedConns = gm.GetOrRegisterCounter("ingest.connections.accepted.count", gm.DefaultRegistry)
	activeConns = gm.GetOrRegisterGauge("ingest.connections.active", gm.DefaultRegistry)
}

// Listener accepts plaintext connections and feeds each one to a Handler.
type Listener struct {
	addr        string
	readTimeout time.Duration
	handler     *Handler

	listener net.Listener
	wg       sync.WaitGroup
	mtx      sync.Mutex
	conns    map[net.Conn]struct{}
	closed   bool
}

// NewListener closes a connection after readTimeout without data. Zero disables the deadline.
func NewListener(addr string, readTimeout time.Duration, handler *Handler) *Listener {
	return &Listener{
		addr:        addr,
		readTimeout: readTimeout,
		handler:     handler,
		conns:       map[net.Conn]struct{}{},
	}
}

// Listen binds the address without accepting connections yet.
func (l *Listener) Listen() error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.listener = listener
	log.Infof("tcp metrics server listening on %s", listener.Addr())
	return nil
}

// Addr is the bound address, nil before Listen.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Serve accepts connections until ctx is done, then closes open connections and
// waits for their handlers to return.
func (l *Listener) Serve(ctx context.Context) error {
	if l.listener == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		l.listener.Close()
		l.closeConns()
	}()

	var err error
	for {
		conn, acceptErr := l.listener.Accept()
		if acceptErr != nil {
			if ctx.Err() == nil && !errors.Is(acceptErr, net.ErrClosed) {
				err = acceptErr
			}
			break
		}
		acceptedConns.Inc(1)
		if !l.track(conn) {
			continue
		}
		l.wg.Add(1)
		go l.handle(conn)
	}
	l.wg.Wait()
	return err
}

func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.WithField("remote", remote).Debug("connection opened")
	if err := l.handler.Handle(&deadlineReader{conn: conn, timeout: l.readTimeout}); err != nil {
		log.WithFields(log.Fields{
			"remote": remote,
			"error":  err,
		}).Debug("connection closed with error")
		return
	}
	log.WithField("remote", remote).Debug("connection closed")
}

// track registers conn for shutdown. A conn accepted after shutdown is closed and rejected.
func (l *Listener) track(conn net.Conn) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.closed {
		conn.Close()
		return false
	}
	l.conns[conn] = struct{}{}
	activeConns.Update(int64(len(l.conns)))
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.conns, conn)
	activeConns.Update(int64(len(l.conns)))
}

func (l *Listener) closeConns() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.closed = true
	for conn := range l.conns {
		conn.Close()
	}
}

// deadlineReader extends the read deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}
