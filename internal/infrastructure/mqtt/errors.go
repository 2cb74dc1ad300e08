package mqtt

import "errors"

// Sentinel errors returned by Client. Callers match them with errors.Is;
// broker-side causes are wrapped underneath.
var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: broker connect failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// Argument errors, detected before anything reaches the broker.
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
