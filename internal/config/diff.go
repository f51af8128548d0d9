package config

// ConfigDiff describes what changed between two configs: the log level and
// the AI, NPC movement, turn and queue sections.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	AIChanged  bool
	NewAI      AIConfig
	NPCMoveChanged bool
	NewNPCMove     NPCMovementConfig
	TurnChanged    bool
	NewTurn        TurnConfig
	QueuesChanged  bool
	NewQueues      QueuesConfig
}

// Diff compares old and new configs and returns what changed. The listen
// addresses, data slot and debug level are not tracked. Tracking a section
// does not make it live: cmd/narrator applies only the log level without a
// restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.AI != new.AI {
		d.AIChanged = true
		d.NewAI = new.AI
	}
	if old.NPCMovement != new.NPCMovement {
		d.NPCMoveChanged = true
		d.NewNPCMove = new.NPCMovement
	}
	if old.Turn != new.Turn {
		d.TurnChanged = true
		d.NewTurn = new.Turn
	}
	if !queuesEqual(old.Queues, new.Queues) {
		d.QueuesChanged = true
		d.NewQueues = new.Queues
	}

	return d
}

// queuesEqual compares QueuesConfig by value, since it embeds a slice
// (NoiseTypes) and is therefore not comparable with ==.
func queuesEqual(a, b QueuesConfig) bool {
	if a.LogCap != b.LogCap ||
		a.NoisePruneCap != b.NoisePruneCap ||
		a.OutboxCap != b.OutboxCap ||
		a.StaleProcessingThresholdMS != b.StaleProcessingThresholdMS ||
		len(a.NoiseTypes) != len(b.NoiseTypes) {
		return false
	}
	for i := range a.NoiseTypes {
		if a.NoiseTypes[i] != b.NoiseTypes[i] {
			return false
		}
	}
	return true
}
