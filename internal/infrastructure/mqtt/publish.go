package mqtt

import "fmt"

const maxPayloadSize = 1 << 20

// checkPublish rejects arguments the broker would refuse anyway.
func checkPublish(topic string, qos byte, payload []byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d byte payload over %d byte limit", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to accept it.
// Zone state and bridge health are published retained; acks are not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkPublish(topic, qos, payload); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	tok := c.client.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: no broker ack within %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
