package room

// TrackKind distinguishes audio from video tracks
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// TrackInfo describes a published track
type TrackInfo struct {
	SID                 string    `json:"sid"`
	Name                string    `json:"name"`
	Kind                TrackKind `json:"kind"`
	ParticipantIdentity string    `json:"participantIdentity"`
	SampleRate          int       `json:"sampleRate,omitempty"`
}

// ParticipantInfo describes a room participant
type ParticipantInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// DataMessage is a broadcast data payload delivered with its topic
type DataMessage struct {
	From    string
	Topic   string
	Payload []byte
}

// MediaFrame is one chunk of PCM audio belonging to a subscribed track
type MediaFrame struct {
	TrackSID   string
	PCM        []byte
	SampleRate int
}

// Handlers receives room events. Nil handlers are skipped. All callbacks
// are invoked from the client's single read loop, never concurrently.
type Handlers struct {
	OnData              func(msg DataMessage)
	OnTrackSubscribed   func(t TrackInfo)
	OnTrackUnsubscribed func(t TrackInfo)
	OnMedia             func(f MediaFrame)
	OnParticipantJoined func(p ParticipantInfo)
	OnParticipantLeft   func(p ParticipantInfo)
	OnDisconnected      func(err error)
}

// envelope is the wire format exchanged with the room server. Event selects
// which of the optional fields are meaningful.
type envelope struct {
	Event string `json:"event"`

	// join
	Participant *ParticipantInfo `json:"participant,omitempty"`
	Room        string           `json:"room,omitempty"`

	// data
	From    string `json:"from,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Payload []byte `json:"payload,omitempty"`

	// track_subscribed / track_unsubscribed / publish_track / unpublish_track
	Track *TrackInfo `json:"track,omitempty"`

	// media
	TrackSID   string `json:"trackSid,omitempty"`
	Media      []byte `json:"media,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`

	// mic
	Enabled *bool `json:"enabled,omitempty"`
}

const (
	eventJoin              = "join"
	eventData              = "data"
	eventTrackSubscribed   = "track_subscribed"
	eventTrackUnsubscribed = "track_unsubscribed"
	eventMedia             = "media"
	eventMic               = "mic"
	eventPublishTrack      = "publish_track"
	eventUnpublishTrack    = "unpublish_track"
	eventParticipantJoined = "participant_joined"
	eventParticipantLeft   = "participant_left"
)
