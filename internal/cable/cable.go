package cable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var (
	ErrRejected     = errors.New("cable: subscription rejected")
	ErrDisconnected = errors.New("cable: server requested disconnect")
)

type TokenSource interface {
	Token() string
}

// frame is one server->client envelope of the channel protocol.
type frame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Reconnect  *bool           `json:"reconnect,omitempty"`
}

type command struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
}

// Client dials the push channel. Each Subscribe opens its own connection.
type Client struct {
	url        string
	channel    string
	tokens     TokenSource
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

// WithBackOff overrides the reconnect schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

func NewClient(rawURL, channel string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		url:     rawURL,
		channel: channel,
		tokens:  tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) identifier() string {
	id, _ := json.Marshal(map[string]string{"channel": c.channel})
	return string(id)
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) endpoint(token string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse cable url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Subscribe starts a subscription that keeps reconnecting until closed, the server
// rejects it, or the server disconnects without asking for a reconnect.
// Every dial reads the current token from the client's TokenSource.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	if _, err := c.endpoint(""); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client:     c,
		identifier: c.identifier(),
		messages:   make(chan json.RawMessage, 64),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	go s.run()
	return s, nil
}

// Subscription delivers the channel's data messages in server-send order.
type Subscription struct {
	client     *Client
	identifier string
	messages   chan json.RawMessage
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once

	connMu sync.Mutex
	conn   *websocket.Conn
	token  string
}

// Messages is closed once the subscription ends for good.
func (s *Subscription) Messages() <-chan json.RawMessage {
	return s.messages
}

func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		if err := s.send(command{Command: "unsubscribe", Identifier: s.identifier}); err != nil {
			log.WithField("component", "cable").WithError(err).Debug("Unsubscribe not sent")
		}
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *Subscription) run() {
	defer close(s.done)
	defer close(s.messages)

	logger := log.WithFields(log.Fields{"component": "cable", "channel": s.client.channel})
	b := backoff.WithContext(s.client.newBackOff(), s.ctx)

	for {
		subscribed, err := s.session()
		if s.ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrDisconnected) {
			logger.WithError(err).Warn("Channel closed by server")
			return
		}
		if subscribed {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			logger.WithError(err).Error("Giving up on channel")
			return
		}
		logger.WithError(err).WithField("retry_in", wait).Warn("Channel disconnected, reconnecting")

		select {
		case <-time.After(wait):
		case <-s.ctx.Done():
			return
		}
	}
}

// session runs one connection until it fails. subscribed reports whether the
// server confirmed the subscription on this connection.
func (s *Subscription) session() (subscribed bool, err error) {
	token := s.client.token()
	endpoint, err := s.client.endpoint(token)
	if err != nil {
		return false, err
	}
	conn, _, err := s.client.dialer.DialContext(s.ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	s.setConn(conn, token)
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer func() {
		stop()
		s.setConn(nil, "")
		conn.Close()
	}()

	logger := log.WithFields(log.Fields{"component": "cable", "channel": s.client.channel})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return subscribed, fmt.Errorf("read: %w", err)
		}

		switch f.Type {
		case "welcome":
			if err := s.send(command{Command: "subscribe", Identifier: s.identifier}); err != nil {
				return subscribed, fmt.Errorf("subscribe: %w", err)
			}
		case "ping":
		case "confirm_subscription":
			subscribed = true
			logger.Info("Channel subscribed")
		case "reject_subscription":
			return subscribed, ErrRejected
		case "disconnect":
			if f.Reconnect != nil && !*f.Reconnect {
				return subscribed, fmt.Errorf("%w: %s", ErrDisconnected, f.Reason)
			}
			return subscribed, fmt.Errorf("server disconnect: %s", f.Reason)
		case "":
			if f.Identifier != s.identifier || len(f.Message) == 0 {
				continue
			}
			select {
			case s.messages <- f.Message:
			case <-s.ctx.Done():
				return subscribed, s.ctx.Err()
			}
		default:
			logger.WithField("type", f.Type).Debug("Ignoring unknown frame")
		}
	}
}

func (s *Subscription) setConn(conn *websocket.Conn, token string) {
	s.connMu.Lock()
	s.conn = conn
	s.token = token
	s.connMu.Unlock()
}

// RefreshToken drops the live connection when the token source has moved on
// from the token it was dialed with, so the next dial authenticates as the
// current user.
func (s *Subscription) RefreshToken() {
	token := s.client.token()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil || s.token == token {
		return
	}
	log.WithField("component", "cable").Info("Session token changed, redialing channel")
	s.conn.Close()
}

func (s *Subscription) send(cmd command) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return errors.New("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(cmd)
}
