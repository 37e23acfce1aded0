package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandJoin         CommandType = "Join"
	CommandLeave        CommandType = "Leave"
	CommandGrab         CommandType = "Grab"
	CommandRelease      CommandType = "Release"
	CommandChargeStart  CommandType = "ChargeStart"
	CommandChargeFinish CommandType = "ChargeFinish"
	CommandChargeCancel CommandType = "ChargeCancel"
	CommandEquip        CommandType = "Equip"
	CommandHeartbeat    CommandType = "Heartbeat"
)

// GripCommand identifies the hand controller grasping or releasing the
// instrument. Dominant marks the caster's dominant hand, consulted when the
// holder registry recomputes the primary designation.
type GripCommand struct {
	SourceID string `json:"sourceId"`
	Dominant bool   `json:"dominant"`
}

// ChargeCommand carries a charge request from one input source. HeldSeconds
// is only meaningful on ChargeFinish: the controller-measured hold duration.
type ChargeCommand struct {
	SourceID    string  `json:"sourceId"`
	HeldSeconds float64 `json:"heldSeconds,omitempty"`
}

// EquipCommand selects the ability for subsequent charges.
type EquipCommand struct {
	AbilityID string `json:"abilityId"`
}

// HeartbeatCommand updates connectivity metadata for a caster.
type HeartbeatCommand struct {
	ReceivedAt time.Time     `json:"receivedAt"`
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	Seq        uint64            `json:"seq,omitempty"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Grip       *GripCommand      `json:"grip,omitempty"`
	Charge     *ChargeCommand    `json:"charge,omitempty"`
	Equip      *EquipCommand     `json:"equip,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
}

// HolderMutation reports whether the command changes the holder set or the
// caster roster. These are applied before any charge-session decision within
// a tick.
func (c Command) HolderMutation() bool {
	switch c.Type {
	case CommandJoin, CommandLeave, CommandGrab, CommandRelease:
		return true
	default:
		return false
	}
}
