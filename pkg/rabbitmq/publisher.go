package rabbitmq

import (
	"fmt"

	"github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes payloads to a fixed MQTT destination.
type IPublisher interface {
	PublishMessage(payload []byte) error
	Close()
}

// Publisher binds a shared MQTT client to one destination topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    qosFor(topic),
	}
}

// PublishMessage publishes the payload to the publisher's topic.
func (p *Publisher) PublishMessage(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", p.topic, token.Error())
	}
	return nil
}

// Close is a no-op on the shared client; the connection owner disconnects it.
func (p *Publisher) Close() {}
