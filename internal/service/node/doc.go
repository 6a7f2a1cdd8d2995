// Package node assembles a running controller: configuration, transport,
// the synchronization protocol, the alarm machine (master), simulated
// devices, and telemetry. It hosts the per-role reaction rules that turn
// sensor events into alarm transitions and broadcasts.
package node
