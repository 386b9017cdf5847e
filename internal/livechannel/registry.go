package livechannel

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("live channel not connected")
	ErrSendTimeout  = errors.New("live channel send timed out")
	ErrClosed       = errors.New("live channel closed")
)

// Message is one event pushed to a service.
type Message struct {
	Event string
	Data  []byte
}

// Conn is the registry side of one service connection. The transport drains
// Messages until Done is closed.
type Conn struct {
	serviceID string
	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conn) ServiceID() string { return c.serviceID }

func (c *Conn) Messages() <-chan Message { return c.messages }

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry maps service ids to their single active live connection.
type Registry struct {
	mu          sync.RWMutex
	conns       map[string]*Conn
	buffer      int
	sendTimeout time.Duration
	onChange    func(connected int)
}

// Option configures a Registry.
type Option func(*Registry)

// WithOnChange registers a callback run with the connection count after every
// register or deregister. Used to drive the connected gauge.
func WithOnChange(fn func(connected int)) Option {
	return func(r *Registry) { r.onChange = fn }
}

func NewRegistry(buffer int, sendTimeout time.Duration, opts ...Option) *Registry {
	if buffer <= 0 {
		buffer = 16
	}
	if sendTimeout <= 0 {
		sendTimeout = time.Second
	}
	r := &Registry{
		conns:       make(map[string]*Conn),
		buffer:      buffer,
		sendTimeout: sendTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register opens a connection for serviceID. A previous connection for the
// same service is closed and replaced.
func (r *Registry) Register(serviceID string) *Conn {
	conn := &Conn{
		serviceID: serviceID,
		messages:  make(chan Message, r.buffer),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	prev := r.conns[serviceID]
	r.conns[serviceID] = conn
	n := len(r.conns)
	r.mu.Unlock()

	if prev != nil {
		prev.close()
		zap.L().Info("live channel replaced", zap.String("service_id", serviceID))
	}
	r.notify(n)
	return conn
}

// Deregister removes conn if it is still the active connection of its service.
func (r *Registry) Deregister(conn *Conn) {
	r.mu.Lock()
	removed := false
	if r.conns[conn.serviceID] == conn {
		delete(r.conns, conn.serviceID)
		removed = true
	}
	n := len(r.conns)
	r.mu.Unlock()

	conn.close()
	if removed {
		r.notify(n)
	}
}

// Connected reports whether serviceID has an active connection.
func (r *Registry) Connected(serviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[serviceID]
	return ok
}

// Len returns the number of connected services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send enqueues msg on the service's connection. It waits at most the send
// timeout for buffer space and never holds the registry lock while waiting.
func (r *Registry) Send(ctx context.Context, serviceID string, msg Message) error {
	r.mu.RLock()
	conn, ok := r.conns[serviceID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	timer := time.NewTimer(r.sendTimeout)
	defer timer.Stop()

	select {
	case <-conn.done:
		return ErrClosed
	default:
	}

	select {
	case conn.messages <- msg:
		return nil
	case <-conn.done:
		return ErrClosed
	case <-timer.C:
		return ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseAll closes every connection. Streams observe Done and return.
func (r *Registry) CloseAll(_ context.Context) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	if len(conns) > 0 {
		zap.L().Info("closed live channels", zap.Int("count", len(conns)))
		r.notify(0)
	}
	return nil
}

func (r *Registry) notify(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
