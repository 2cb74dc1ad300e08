package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/internal/zone"
)

// CommandMessage is a zone command received on rnet/command/<controller>/<zone>.
//
// Controller and Zone may be omitted when the topic carries them.
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID string `json:"id"`

	Controller int `json:"controller,omitempty"`
	Zone       int `json:"zone,omitempty"`

	// Command is one of: volume, power, source, bass, zone_info, all_on, all_off.
	Command string `json:"command"`

	// Value is the raw protocol value. Required for volume, power, source
	// and bass; ignored otherwise.
	Value *int `json:"value,omitempty"`

	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome reported in an AckMessage.
type AckStatus string

const (
	// AckAccepted means the frame was written to the bus.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was rejected or could not be sent.
	AckFailed AckStatus = "failed"

	// AckTimeout means the send did not complete in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is published to rnet/ack/<controller>/<zone>.
type AckMessage struct {
	CommandID  string    `json:"command_id"`
	Timestamp  time.Time `json:"timestamp"`
	Controller int       `json:"controller"`
	Zone       int       `json:"zone"`
	Command    string    `json:"command"`
	Status     AckStatus `json:"status"`
	Error      *AckError `json:"error,omitempty"`
}

// AckError details a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in acks and responses.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is published retained to rnet/state/<controller>/<zone>.
type StateMessage struct {
	Controller int        `json:"controller"`
	Zone       int        `json:"zone"`
	Timestamp  time.Time  `json:"timestamp"`
	State      zone.State `json:"state"`
}

// HealthStatus is the bridge status in a HealthMessage.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained to rnet/health.
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *Statistics       `json:"statistics,omitempty"`
	ZonesManaged  int               `json:"zones_managed"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the RNet transport.
type ConnectionStatus struct {
	Status       string     `json:"status"`
	Endpoint     string     `json:"endpoint"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// Statistics are the engine counters included in health messages.
type Statistics struct {
	FramesReceived  uint64 `json:"frames_received"`
	FramesSent      uint64 `json:"frames_sent"`
	FramesUnmatched uint64 `json:"frames_unmatched"`
	Errors          uint64 `json:"errors"`
}

// RequestMessage is received on rnet/request/<id>.
type RequestMessage struct {
	RequestID string `json:"request_id"`

	// Action is "refresh" (query zone info) or "read_state" (cached state).
	Action string `json:"action"`

	// Controller and Zone limit the action to one zone when set.
	Controller int `json:"controller,omitempty"`
	Zone       int `json:"zone,omitempty"`
}

// ResponseMessage is published to rnet/response/<id>.
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError details a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates a successful ack for cmd.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID:  cmd.ID,
		Timestamp:  time.Now().UTC(),
		Controller: cmd.Controller,
		Zone:       cmd.Zone,
		Command:    cmd.Command,
		Status:     status,
	}
}

// NewAckError creates a failed ack. TIMEOUT maps to AckTimeout.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for a zone.
func NewStateMessage(id rnet.ZoneID, state zone.State) StateMessage {
	return StateMessage{
		Controller: id.Controller,
		Zone:       id.Zone,
		Timestamp:  time.Now().UTC(),
		State:      state,
	}
}

// NewLWTMessage creates the offline message the broker publishes if the
// bridge disconnects uncleanly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected disconnect",
	}
}

func errorResponse(requestID, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Error:     &ResponseError{Code: code, Message: message},
	}
}

func successResponse(requestID string, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}
