// Package mqtt wraps the paho client with the bridge's connect, subscribe
// and bounded reconnect behavior.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	TransportTCP        = "tcp"
	TransportWebsockets = "websockets"

	defaultPort    = "1883"
	publishTimeout = 5 * time.Second
	connectTimeout = 30 * time.Second
	disconnectWait = 250 // milliseconds
)

var (
	// ErrRetriesExhausted is returned by Connect, or delivered on Fatal,
	// once every retry has failed.
	ErrRetriesExhausted = errors.New("mqtt reconnect retries exhausted")

	// ErrNotConnected is returned by Publish before Connect succeeded.
	ErrNotConnected = errors.New("mqtt client not connected")

	// ErrPublishTimeout is returned when the broker does not acknowledge a
	// publish in time.
	ErrPublishTimeout = errors.New("mqtt publish timed out")
)

// Options configures the broker connection.
type Options struct {
	Dest      string // host[:port]
	ClientID  string
	Username  string
	Password  string
	Insecure  bool // TLS without certificate verification
	Version   uint // 3 (MQTT 3.1) or 4 (MQTT 3.1.1)
	Transport string

	// Retry policy for a failed connect or a lost connection.
	Retries      int
	RetryWait    time.Duration
	RetryWaitMax time.Duration
}

func (o *Options) applyDefaults() {
	if o.Version == 0 {
		o.Version = 4
	}
	if o.Retries == 0 {
		o.Retries = 3
	}
	if o.RetryWait == 0 {
		o.RetryWait = time.Second
	}
	if o.RetryWaitMax == 0 {
		o.RetryWaitMax = 30 * time.Second
	}
}

// BrokerURL builds the paho server URL for the destination, transport and
// TLS mode. Without an explicit transport, ports 9001 and 443 use
// websockets.
func (o Options) BrokerURL() (string, error) {
	host, port, err := net.SplitHostPort(o.Dest)
	if err != nil {
		host, port = o.Dest, defaultPort
	}
	if host == "" {
		return "", fmt.Errorf("invalid mqtt destination %q", o.Dest)
	}

	transport := o.Transport
	if transport == "" {
		transport = TransportTCP
		if port == "9001" || port == "443" {
			transport = TransportWebsockets
		}
	}

	var scheme string
	switch transport {
	case TransportTCP:
		scheme = "tcp"
		if o.Insecure {
			scheme = "ssl"
		}
	case TransportWebsockets:
		scheme = "ws"
		if o.Insecure {
			scheme = "wss"
		}
	default:
		return "", fmt.Errorf("unsupported mqtt transport %q", transport)
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, port)), nil
}

// MessageHandler receives inbound messages.
type MessageHandler func(topic string, payload []byte)

// Observer is told about connection state changes.
type Observer interface {
	SetConnected(connected bool)
	Reconnecting(attempt int)
	Published(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) SetConnected(bool)       {}
func (nopObserver) Reconnecting(int)        {}
func (nopObserver) Published(time.Duration) {}

// Client is a broker connection that owns its reconnect policy. paho's
// own auto-reconnect is disabled.
type Client struct {
	opts      Options
	topics    []string
	handler   MessageHandler
	onConnect func()
	observer  Observer

	newClient func(*paho.ClientOptions) paho.Client
	sleep     func(time.Duration)

	mu     sync.Mutex
	client paho.Client

	fatal chan error
}

// NewClient creates an unconnected client. Every topic in topics is
// subscribed on each successful connect, then onConnect runs.
func NewClient(opts Options, topics []string, handler MessageHandler, onConnect func()) *Client {
	opts.applyDefaults()
	if onConnect == nil {
		onConnect = func() {}
	}
	return &Client{
		opts:      opts,
		topics:    topics,
		handler:   handler,
		onConnect: onConnect,
		observer:  nopObserver{},
		newClient: paho.NewClient,
		sleep:     time.Sleep,
		fatal:     make(chan error, 1),
	}
}

// SetObserver installs o. Call before Connect.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Fatal receives ErrRetriesExhausted when the connection cannot be
// restored.
func (c *Client) Fatal() <-chan error {
	return c.fatal
}

// ClientOptions translates Options into paho options.
func (c *Client) ClientOptions() (*paho.ClientOptions, error) {
	if c.opts.Version != 3 && c.opts.Version != 4 {
		return nil, fmt.Errorf("unsupported mqtt protocol version %d", c.opts.Version)
	}
	broker, err := c.opts.BrokerURL()
	if err != nil {
		return nil, err
	}

	po := paho.NewClientOptions()
	po.AddBroker(broker)
	po.SetClientID(c.opts.ClientID)
	po.SetProtocolVersion(c.opts.Version)
	po.SetAutoReconnect(false)
	po.SetConnectRetry(false)
	po.SetCleanSession(true)
	po.SetConnectTimeout(connectTimeout)
	if c.opts.Username != "" {
		po.SetUsername(c.opts.Username)
		po.SetPassword(c.opts.Password)
	}
	if c.opts.Insecure {
		po.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}
	po.SetOnConnectHandler(c.connected)
	po.SetConnectionLostHandler(c.connectionLost)
	return po, nil
}

// Connect dials the broker. A failed first attempt is retried with the
// same backoff as a lost connection before the error is returned.
func (c *Client) Connect() error {
	po, err := c.ClientOptions()
	if err != nil {
		return err
	}

	log.Info().Str("broker", po.Servers[0].String()).Str("clientID", c.opts.ClientID).Msg("Connecting to MQTT broker")

	client := c.newClient(po)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	err = connectOnce(client)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("MQTT connect failed")
	if err := c.retry(client, err); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func connectOnce(client paho.Client) error {
	token := client.Connect()
	token.Wait()
	return token.Error()
}

// retry reconnects with a doubling wait. It returns ErrRetriesExhausted,
// joined with the last connect error, when every attempt fails.
func (c *Client) retry(client paho.Client, last error) error {
	wait := c.opts.RetryWait
	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		log.Info().Int("attempt", attempt).Dur("wait", wait).Msg("Retrying MQTT connection")
		c.observer.Reconnecting(attempt)
		c.sleep(wait)

		if last = connectOnce(client); last == nil {
			return nil
		}
		log.Warn().Err(last).Int("attempt", attempt).Msg("MQTT reconnect failed")

		wait *= 2
		if wait > c.opts.RetryWaitMax {
			wait = c.opts.RetryWaitMax
		}
	}
	return errors.Join(ErrRetriesExhausted, last)
}

func (c *Client) connected(client paho.Client) {
	log.Info().Msg("Connected to MQTT broker")
	c.observer.SetConnected(true)

	for _, topic := range c.topics {
		token := client.Subscribe(topic, 0, c.deliver)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Subscribe failed")
			continue
		}
		log.Debug().Str("topic", topic).Msg("Subscribed")
	}

	c.onConnect()
}

func (c *Client) deliver(_ paho.Client, msg paho.Message) {
	log.Debug().Str("topic", msg.Topic()).Bytes("payload", msg.Payload()).Msg("MQTT message received")
	if c.handler != nil {
		c.handler(msg.Topic(), msg.Payload())
	}
}

func (c *Client) connectionLost(client paho.Client, err error) {
	log.Error().Err(err).Msg("MQTT connection lost")
	c.observer.SetConnected(false)
	go c.reconnect(client)
}

// reconnect restores a lost connection. When every attempt fails the
// error is reported on Fatal.
func (c *Client) reconnect(client paho.Client) {
	err := c.retry(client, nil)
	if err == nil {
		return
	}

	log.Error().Err(err).Int("retries", c.opts.Retries).Msg("MQTT connection failed")
	select {
	case c.fatal <- err:
	default:
	}
}

// Publish sends payload and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	start := time.Now()
	token := client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.observer.Published(time.Since(start))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.client.IsConnected()
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return
	}
	client.Disconnect(disconnectWait)
	c.observer.SetConnected(false)
	log.Info().Msg("Disconnected from MQTT broker")
}

// ValidTransport reports whether t names a supported transport.
func ValidTransport(t string) bool {
	t = strings.ToLower(t)
	return t == "" || t == TransportTCP || t == TransportWebsockets
}
