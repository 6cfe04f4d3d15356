// Package mqtt wraps the paho MQTT client with the bridge's connect/retry,
// publish and subscribe conventions. It knows nothing about C-Bus group
// addresses or discovery payload shapes; those live in pkg/discovery and
// pkg/busevents, which depend on this package rather than the other way
// around.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"cbus-mqtt-bridge/pkg/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// QoS levels used throughout the bridge: state and config publishes are
// retained at QoS 1, command subscriptions are QoS 2.
const (
	QoSPublish   byte = 1
	QoSSubscribe byte = 2
)

// TLSSettings carries the certificate material for a TLS broker
// connection. A zero value means TLS is disabled.
type TLSSettings struct {
	Enabled  bool
	CAFile   string
	CertFile string
	KeyFile  string
}

// Settings configures the underlying paho client.
type Settings struct {
	Broker      string
	Port        int
	ClientID    string
	Username    string
	Password    string
	KeepAlive   time.Duration
	RetryDelay  time.Duration
	StatusTopic string
	TLS         TLSSettings
}

// Client is a thin façade over paho.Client adding the bridge's retrying
// Connect and a Last-Will-backed status topic.
type Client struct {
	client       paho.Client
	settings     Settings
	onConnect    func()
}

// NewClient builds a paho client configured per settings. The status topic
// is armed as a Last Will so the broker marks the bridge offline on an
// unclean disconnect. onConnect, if non-nil, fires every time the client
// establishes (or re-establishes) a session — the Supervisor uses this to
// start the dispatcher and (re)publish discovery.
func NewClient(settings Settings, onConnect func()) (*Client, error) {
	opts := paho.NewClientOptions()

	scheme := "tcp"
	if settings.TLS.Enabled {
		scheme = "ssl"
		tlsConfig, err := buildTLSConfig(settings.TLS)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, settings.Broker, settings.Port))
	opts.SetClientID(settings.ClientID)
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetAutoReconnect(true)

	keepAlive := settings.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	if settings.StatusTopic != "" {
		opts.SetWill(settings.StatusTopic, "offline", QoSPublish, true)
	}

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.LogInfo("MQTT client connected to broker")
		if onConnect != nil {
			onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.LogError("❌ MQTT client disconnected: %v", err)
	})

	return &Client{client: paho.NewClient(opts), settings: settings, onConnect: onConnect}, nil
}

// buildTLSConfig loads the CA/cert/key material for a TLS broker
// connection. The client certificate/key pair is optional (set only when
// the broker requires mutual TLS); the CA is optional too, falling back
// to the system trust store when unset.
func buildTLSConfig(settings TLSSettings) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if settings.CAFile != "" {
		caPEM, err := os.ReadFile(settings.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file %s: %w", settings.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in CA file %s", settings.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if settings.CertFile != "" && settings.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(settings.CertFile, settings.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect retries indefinitely until the broker accepts the connection or
// ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	retryDelay := c.settings.RetryDelay
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}

	attempt := 1
	for {
		logger.LogDebug("🔄 connecting to MQTT broker (attempt %d)", attempt)

		if token := c.client.Connect(); token.Wait() && token.Error() != nil {
			logger.LogError("❌ MQTT connect failed (attempt %d): %v", attempt, token.Error())
			select {
			case <-ctx.Done():
				return fmt.Errorf("mqtt connect cancelled: %w", ctx.Err())
			case <-time.After(retryDelay):
				attempt++
				continue
			}
		}

		logger.LogInfo("✅ MQTT client connected after %d attempt(s)", attempt)
		return nil
	}
}

// Disconnect performs a clean MQTT disconnect, giving the broker 250ms to
// flush in-flight QoS 1/2 acknowledgements.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// IsConnected reports the current transport state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Publish sends payload to topic at the given QoS, optionally retained.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// PublishString is a convenience wrapper for plain-string payloads such as
// switch and binary-sensor state.
func (c *Client) PublishString(topic string, qos byte, retained bool, payload string) error {
	return c.Publish(topic, qos, retained, []byte(payload))
}

// Subscribe registers handler for messages on topic at the given QoS.
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

