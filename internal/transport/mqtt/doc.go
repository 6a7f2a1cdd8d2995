// Package mqtt implements transport.Channel on the Eclipse Paho MQTT
// client: clean sessions, automatic reconnect, and subscription replay so
// retained broadcasts resynchronize a node after it was away.
package mqtt
