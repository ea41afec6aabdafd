package broadcast

import (
	"encoding/json"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/metrics"
)

// MQTTPublisher pushes detection batches to an MQTT topic for external
// consumers (overlay displays, projection software). Delivery and ordering
// beyond QoS 0 are the broker's concern.
type MQTTPublisher struct {
	conn      mqtt.Client
	topic     string
	connected atomic.Bool
	log       zerolog.Logger
}

// MQTTOptions configures the MQTT publisher.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	Log       zerolog.Logger
}

// ConnectMQTT connects to the broker and returns a publisher. The client
// auto-reconnects; publishes while disconnected are dropped with a warning.
func ConnectMQTT(opts MQTTOptions) (*MQTTPublisher, error) {
	p := &MQTTPublisher{
		topic: opts.Topic,
		log:   opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	p.conn = mqtt.NewClient(clientOpts)
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return p, nil
}

// PublishDetections publishes one detection batch as a JSON array.
// Empty batches are skipped.
func (p *MQTTPublisher) PublishDetections(detections []bible.Detection) {
	if len(detections) == 0 {
		return
	}
	if !p.connected.Load() {
		p.log.Warn().Int("count", len(detections)).Msg("mqtt disconnected, dropping detection batch")
		return
	}

	payload, err := json.Marshal(detections)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal detection batch")
		return
	}

	token := p.conn.Publish(p.topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.Error().Err(err).Str("topic", p.topic).Msg("mqtt publish failed")
			return
		}
		metrics.EventsPublishedTotal.WithLabelValues("mqtt").Inc()
	}()
}

func (p *MQTTPublisher) onConnect(_ mqtt.Client) {
	p.connected.Store(true)
	p.log.Info().Str("topic", p.topic).Msg("mqtt connected")
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// IsConnected reports whether the broker connection is up.
func (p *MQTTPublisher) IsConnected() bool {
	return p.connected.Load()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.log.Info().Msg("disconnecting mqtt publisher")
	p.conn.Disconnect(1000)
}
