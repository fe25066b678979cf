package mqtt

import (
	"fmt"
	"log"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sweeney/tank-pump/internal/logic"
)

// DefaultBufferSize is how many messages are held while the broker is away.
const DefaultBufferSize = 64

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	Username string
	Password string
	// ClientID defaults to NewClientID().
	ClientID   string
	BufferSize int
	// Commands, if set, receives directives from TopicCommand.
	Commands *CommandQueue
}

// NewClientID returns DeviceID with a short random suffix, so two controllers
// on one broker do not kick each other off.
func NewClientID() string {
	return DeviceID + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RealPublisher publishes to an actual MQTT broker and subscribes to the
// command topic.
type RealPublisher struct {
	client   paho.Client
	commands *CommandQueue
	out      *outbox
}

// NewRealPublisher creates a publisher connected to the given broker.
// If the broker is not reachable within the connect timeout the publisher is
// still returned; paho keeps retrying and messages are buffered until then.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = NewClientID()
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	p := &RealPublisher{
		commands: o.Commands,
		out:      newOutbox(o.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.out.goOffline()
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every (re)connect: paho drops subscriptions with a clean
// session, so the command topic is subscribed again, then buffered messages
// are replayed.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.Printf("mqtt: connected")
	if p.commands != nil {
		token := c.Subscribe(TopicCommand, 1, p.handleCommand)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", TopicCommand, token.Error())
		}
	}

	n := p.out.goOnline(func(m bufferedMsg) {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay %s: %v", m.topic, err)
		}
	})
	if n > 0 {
		log.Printf("mqtt: replayed %d buffered messages", n)
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, m paho.Message) {
	log.Printf("mqtt: command on %s: %s", m.Topic(), m.Payload())
	if err := p.commands.HandleCommand(m.Payload()); err != nil {
		log.Printf("mqtt: %v", err)
	}
}

// PublishPump sends the pump status to the broker.
func (p *RealPublisher) PublishPump(status logic.PumpStatus) error {
	payload, err := FormatPumpPayload(status)
	if err != nil {
		return fmt.Errorf("format pump payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicPump, payload: payload, qos: 1, retained: true})
}

// PublishSensors sends the probe readings to the broker.
func (p *RealPublisher) PublishSensors(readings logic.ProbeReadings) error {
	payload, err := FormatSensorPayload(readings)
	if err != nil {
		return fmt.Errorf("format sensor payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicState, payload: payload, qos: 0, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends m now, or buffers it until the next connect has replayed
// everything queued before it.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.out.offer(m) {
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	return p.out.len()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
