package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// DefaultOutboxSize is how many messages are kept while the broker is unreachable.
const DefaultOutboxSize = 100

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string // defaults to "pothole-guard-<uuid>"
	OutboxSize int

	// HeartRate, if set, receives messages from TopicHeartRate.
	HeartRate *HeartRateRegister

	// OnConnectionChange is called from the client goroutine on connect and loss.
	OnConnectionChange func(connected bool)
}

// RealClient publishes to an actual MQTT broker. Messages published while
// disconnected are kept in an outbox and replayed, oldest first, on reconnect.
type RealClient struct {
	client paho.Client
	opts   Options

	mu  sync.Mutex
	box *outbox[pending]
}

var errConnectTimeout = errors.New("connection timeout")

// NewRealClient connects to the broker. If the broker does not answer within
// the connect timeout the client keeps retrying in the background and the
// returned client buffers until then.
func NewRealClient(o Options) (*RealClient, error) {
	if o.ClientID == "" {
		o.ClientID = "pothole-guard-" + uuid.NewString()
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}
	c := &RealClient{opts: o, box: newOutbox[pending](o.OutboxSize)}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s: %v, buffering until connected", o.Broker, errConnectTimeout)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	log.Printf("mqtt: connected to %s", c.opts.Broker)
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(true)
	}
	if hr := c.opts.HeartRate; hr != nil {
		client.Subscribe(TopicHeartRate, 0, func(_ paho.Client, m paho.Message) {
			if err := hr.Update(m.Payload()); err != nil {
				log.Printf("mqtt: heart rate: %v", err)
			}
		})
	}

	c.mu.Lock()
	queued := c.box.drain()
	c.mu.Unlock()
	if len(queued) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(queued))
	}
	for _, m := range queued {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(false)
	}
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *RealClient) send(m pending) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.box.push(m)
		c.mu.Unlock()
		return nil
	}
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Publish sends an alert to the broker.
func (c *RealClient) Publish(alert logic.Alert) error {
	payload, err := FormatPayload(alert)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return c.send(pending{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events must not be lost
	return c.send(pending{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
