// Package bridge connects the RNet engine to MQTT.
//
// The Bridge is the engine's listener. Decoded zone updates are merged
// into a per-zone state cache; zones whose state actually changed are
// published retained to rnet/state/<controller>/<zone> and saved to the
// zone registry. Commands arriving on rnet/command/<controller>/<zone> are
// validated, sent to the bus and acknowledged on rnet/ack/<controller>/<zone>.
// Refresh requests on rnet/request/<id> query zone info from every zone at
// a bounded rate.
//
// The HealthReporter publishes the bridge status to rnet/health. The same
// topic carries the MQTT Last Will, so subscribers see "offline" if the
// process dies.
//
// # Command payload
//
//	{"id": "c1", "command": "volume", "value": 25}
//
// Commands: volume, power (0/1), source, bass, zone_info, all_on, all_off.
// Values are raw protocol bytes (0-127); no unit conversion is done.
package bridge
