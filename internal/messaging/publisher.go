// Package messaging republishes delivered readings over MQTT for
// downstream consumers. The client is constructed explicitly and owns
// its connect/disconnect lifecycle; nothing here connects as a side
// effect of being imported.
package messaging

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"farmlink/internal/models"
)

// Publisher sends readings to <topicPrefix>/<deviceID>.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// NewPublisher prepares a publisher for the given broker. No network
// I/O happens until Connect is called.
func NewPublisher(broker, clientID, topicPrefix string) *Publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)
	return &Publisher{
		client:      mqtt.NewClient(opts),
		topicPrefix: topicPrefix,
	}
}

// Connect opens the broker connection.
func (p *Publisher) Connect() error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}
	return nil
}

// PublishReading sends one reading as JSON at QoS 0.
func (p *Publisher) PublishReading(reading models.SensorReading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.topicPrefix, reading.DeviceID)
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt publish failed: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing 250ms for in-flight
// messages.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
