// Package mqtt provides the RNet bridge's MQTT client.
//
// The bridge publishes zone state and health to a Mosquitto broker and
// receives zone commands and refresh requests from it. See Topics for the
// topic layout.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
//	    Topic:   mqtt.Topics{}.Health(),
//	    Payload: offlinePayload,
//	    QoS:     1,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handleCommand)
//
// Handlers run on paho goroutines; panics are recovered and logged.
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) on untrusted networks
//   - Anonymous access is only for local development
package mqtt
