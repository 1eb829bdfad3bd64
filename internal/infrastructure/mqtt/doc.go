// Package mqtt publishes the objrecord change feed to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Topic naming under a configurable prefix
//
// # Topics
//
//	<prefix>/records/<table>/<kind>   record changes (created, updated, destroyed)
//	<prefix>/system/status            retained online/offline status
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers reached over a network
//   - Change events carry full attribute maps; restrict subscriptions with
//     broker ACLs when tables hold sensitive columns
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Record("widgets", "created")
//	err = client.PublishDefault(topic, payload)
package mqtt
