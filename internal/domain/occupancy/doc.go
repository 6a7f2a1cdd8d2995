// Package occupancy holds the shared occupant counter. Slaves publish
// signed deltas; the master applies them and rebroadcasts the absolute
// value so every node converges on the same count.
package occupancy
