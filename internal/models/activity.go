package models

import (
	"time"
)

// Activity types with defined routing. Any other type is rejected with an
// UnroutedActivityError; adding a type means adding an explicit routing rule.
const (
	ActivityFollow     = "follow"
	ActivityLike       = "like"
	ActivityComment    = "comment"
	ActivityExpertJoin = "expert_join"
)

// Target content kinds an activity may reference.
const (
	TargetThread = "thread"
	TargetPost   = "post"
	TargetUser   = "user"
)

// Activity is an ephemeral fact to broadcast: persisted for feed history by a
// collaborator, pushed live by the activity router.
type Activity struct {
	ID         string            `bson:"_id" json:"id"`
	Type       string            `bson:"type" json:"type"`
	Actor      UserRef           `bson:"actor" json:"actor"`
	TargetType string            `bson:"target_type,omitempty" json:"target_type,omitempty"`
	TargetID   string            `bson:"target_id,omitempty" json:"target_id,omitempty"`
	Metadata   map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp  time.Time         `bson:"timestamp" json:"timestamp"`
	IsLive     bool              `bson:"is_live" json:"is_live"`
}

// Live event kinds pushed over a user's channel.
const (
	EventNewActivity    = "new_activity"
	EventActivityUpdate = "activity_update"
)

// LiveEvent is the wire shape pushed to connected clients:
// {type, actor, target?, metadata?, timestamp}.
type LiveEvent struct {
	Kind      string            `json:"kind"`
	Type      string            `json:"type"`
	Actor     UserRef           `json:"actor"`
	Target    string            `json:"target,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
