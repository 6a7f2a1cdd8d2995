package alarmsync

// Protocol topics. State and occupancy broadcasts are retained so a node
// that subscribes after a transition still receives the current value.
const (
	// TopicTrigger carries force-alarm requests, slave to master.
	TopicTrigger = "alarm/trigger"
	// TopicState carries the authoritative alarm state, master to all. Retained.
	TopicState = "alarm/state"
	// TopicOccupancyDelta carries occupant count adjustments, slave to master.
	TopicOccupancyDelta = "occupancy/delta"
	// TopicOccupancyAbsolute carries the authoritative occupant count,
	// master to all. Retained.
	TopicOccupancyAbsolute = "occupancy/absolute"

	// topicDoorPrefix prefixes per-slave door event topics.
	topicDoorPrefix = "alarm/door/"
	// TopicDoorFilter is the master-side subscription covering every
	// slave's door topic.
	TopicDoorFilter = topicDoorPrefix + "+"
)

// DoorTopic returns the door event topic owned by the given slave.
func DoorTopic(nodeID string) string {
	return topicDoorPrefix + nodeID
}
