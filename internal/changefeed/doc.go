// Package changefeed turns record changes into events for subscribers.
//
// A Feed is a record.Observer. After every successful Save or Destroy it
// builds an Event carrying a fresh UUID, the table, the primary key, the
// change kind and the full attribute map, then
//   - publishes it as JSON to <prefix>/records/<table>/<kind> over MQTT, and
//   - broadcasts it on the websocket channel "record.<table>".
//
// Delivery is best effort. A failed publish is reported to the repository,
// which logs it; the Save or Destroy that caused it still succeeds.
package changefeed
