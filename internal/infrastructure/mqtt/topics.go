package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every RNet bridge topic.
const TopicPrefix = "rnet"

// Topics builds RNet bridge topics. Zones are addressed by controller and
// zone number:
//
//	rnet/state/<controller>/<zone>    retained zone state (bridge -> subscribers)
//	rnet/command/<controller>/<zone>  zone commands (subscribers -> bridge)
//	rnet/ack/<controller>/<zone>      command acknowledgements
//	rnet/request/<id>                 bridge requests (e.g. refresh)
//	rnet/response/<id>                request responses
//	rnet/health                       retained bridge health, also the LWT
type Topics struct{}

// State returns the retained state topic for a zone.
func (Topics) State(controller, zone int) string {
	return fmt.Sprintf("%s/state/%d/%d", TopicPrefix, controller, zone)
}

// Command returns the command topic for a zone.
func (Topics) Command(controller, zone int) string {
	return fmt.Sprintf("%s/command/%d/%d", TopicPrefix, controller, zone)
}

// Ack returns the acknowledgement topic for a zone.
func (Topics) Ack(controller, zone int) string {
	return fmt.Sprintf("%s/ack/%d/%d", TopicPrefix, controller, zone)
}

// Request returns the topic for a request.
func (Topics) Request(requestID string) string {
	return TopicPrefix + "/request/" + requestID
}

// Response returns the topic for a request's response.
func (Topics) Response(requestID string) string {
	return TopicPrefix + "/response/" + requestID
}

// Health returns the bridge health topic.
func (Topics) Health() string {
	return TopicPrefix + "/health"
}

// AllCommands matches every zone command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/#"
}

// AllRequests matches every request topic.
func (Topics) AllRequests() string {
	return TopicPrefix + "/request/+"
}

// AllStates matches every zone state topic.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/#"
}

// ParseZoneTopic extracts controller and zone from a
// "rnet/<kind>/<controller>/<zone>" topic.
func ParseZoneTopic(topic string) (controller, zone int, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return 0, 0, false
	}

	controller, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	zone, err = strconv.Atoi(parts[3])
	if err != nil {
		return 0, 0, false
	}
	return controller, zone, true
}

// ParseRequestTopic extracts the request ID from "rnet/request/<id>".
func ParseRequestTopic(topic string) (string, bool) {
	id, found := strings.CutPrefix(topic, TopicPrefix+"/request/")
	if !found || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
