package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/resilience"
)

// Client is a websocket connection to the real-time room server. It joins a
// room as one participant, delivers inbound events to Handlers from a single
// read loop, and exposes the outbound operations the turn protocol needs:
// broadcasting data messages, toggling microphone capture, and publishing
// audio tracks.
type Client struct {
	serverURL string
	roomName  string
	local     ParticipantInfo

	// Connection
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer

	// State management
	mu       sync.RWMutex
	isActive bool

	handlers     Handlers
	reconnectCfg *resilience.ReconnectConfig

	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a room client. Connect must be called before use.
func NewClient(serverURL, roomName string, local ParticipantInfo, handlers Handlers, reconnectCfg *resilience.ReconnectConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverURL:    strings.TrimRight(serverURL, "/"),
		roomName:     roomName,
		local:        local,
		handlers:     handlers,
		reconnectCfg: reconnectCfg,
		logger: observability.WithRoom(roomName).With().
			Str("identity", local.Identity).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// LocalIdentity returns the identity this client joined as
func (c *Client) LocalIdentity() string {
	return c.local.Identity
}

// Connect dials the room server, joins the room, and starts the read loop
func (c *Client) Connect() error {
	if err := c.dial(); err != nil {
		return err
	}

	go c.readLoop()
	return nil
}

func (c *Client) dial() error {
	url := fmt.Sprintf("%s/%s", c.serverURL, c.roomName)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial room server at %s: %w", url, err)
	}

	// Each connection gets its own correlation ID so reconnects are
	// distinguishable in the logs
	connLogger := observability.WithCorrelationID(observability.NewCorrelationID()).With().
		Str("room", c.roomName).
		Str("identity", c.local.Identity).
		Logger()

	c.mu.Lock()
	c.conn = conn
	c.isActive = true
	c.mu.Unlock()

	// Announce ourselves to the room
	local := c.local
	if err := c.writeEnvelope(envelope{
		Event:       eventJoin,
		Room:        c.roomName,
		Participant: &local,
	}); err != nil {
		conn.Close()
		c.mu.Lock()
		c.isActive = false
		c.mu.Unlock()
		connLogger.Error().Err(err).Msg("Failed to join room")
		return fmt.Errorf("failed to join room: %w", err)
	}

	connLogger.Info().Msg("Joined room")
	return nil
}

// readLoop reads server envelopes until the connection drops or Close is
// called. Handler callbacks run on this goroutine, so inbound events are
// naturally serialized.
func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		active := c.isActive
		conn := c.conn
		c.mu.RUnlock()

		if !active || conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}

			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Room connection read error")
			}

			if c.tryReconnect(err) {
				continue
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Error().Err(err).Msg("Failed to parse room server message")
			continue
		}

		c.handleEnvelope(env)
	}
}

func (c *Client) handleEnvelope(env envelope) {
	switch env.Event {
	case eventData:
		if c.handlers.OnData != nil {
			c.handlers.OnData(DataMessage{
				From:    env.From,
				Topic:   env.Topic,
				Payload: env.Payload,
			})
		}

	case eventTrackSubscribed:
		if env.Track != nil && c.handlers.OnTrackSubscribed != nil {
			c.handlers.OnTrackSubscribed(*env.Track)
		}

	case eventTrackUnsubscribed:
		if env.Track != nil && c.handlers.OnTrackUnsubscribed != nil {
			c.handlers.OnTrackUnsubscribed(*env.Track)
		}

	case eventMedia:
		if c.handlers.OnMedia != nil {
			c.handlers.OnMedia(MediaFrame{
				TrackSID:   env.TrackSID,
				PCM:        env.Media,
				SampleRate: env.SampleRate,
			})
		}

	case eventParticipantJoined:
		if env.Participant != nil && c.handlers.OnParticipantJoined != nil {
			c.handlers.OnParticipantJoined(*env.Participant)
		}

	case eventParticipantLeft:
		if env.Participant != nil && c.handlers.OnParticipantLeft != nil {
			c.handlers.OnParticipantLeft(*env.Participant)
		}

	default:
		c.logger.Debug().Str("event", env.Event).Msg("Ignoring unknown room event")
	}
}

// tryReconnect redials and rejoins after a dropped connection. Returns
// false when reconnection is exhausted or the client is closing.
func (c *Client) tryReconnect(cause error) bool {
	c.mu.RLock()
	active := c.isActive
	c.mu.RUnlock()
	if !active {
		return false
	}

	err := resilience.Reconnect(c.ctx, c.dial, c.reconnectCfg)
	if err != nil {
		c.logger.Error().Err(err).Msg("Room reconnection failed")
		c.mu.Lock()
		c.isActive = false
		c.mu.Unlock()

		observability.RecordError("room_disconnected", "room")
		if c.handlers.OnDisconnected != nil {
			c.handlers.OnDisconnected(cause)
		}
		return false
	}
	return true
}

func (c *Client) writeEnvelope(env envelope) error {
	c.mu.RLock()
	active := c.isActive
	conn := c.conn
	c.mu.RUnlock()

	if !active || conn == nil {
		return fmt.Errorf("room client is not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

// PublishData broadcasts a reliable data message to all participants on the
// given topic
func (c *Client) PublishData(topic string, payload []byte) error {
	return c.writeEnvelope(envelope{
		Event:   eventData,
		From:    c.local.Identity,
		Topic:   topic,
		Payload: payload,
	})
}

// EnableMicrophone toggles local microphone capture on the room server
func (c *Client) EnableMicrophone(enabled bool) error {
	return c.writeEnvelope(envelope{
		Event:   eventMic,
		Enabled: &enabled,
	})
}

// PublishTrack announces a new outbound audio track and returns a handle
// for writing PCM frames to it
func (c *Client) PublishTrack(name string, sampleRate int) (*LocalTrack, error) {
	info := TrackInfo{
		SID:                 fmt.Sprintf("TR_%s", uuid.New().String()),
		Name:                name,
		Kind:                TrackKindAudio,
		ParticipantIdentity: c.local.Identity,
		SampleRate:          sampleRate,
	}

	if err := c.writeEnvelope(envelope{Event: eventPublishTrack, Track: &info}); err != nil {
		return nil, fmt.Errorf("failed to publish track %s: %w", name, err)
	}

	c.logger.Debug().Str("track", name).Str("sid", info.SID).Msg("Published audio track")
	return &LocalTrack{client: c, info: info}, nil
}

// IsActive returns whether the client is connected
func (c *Client) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive
}

// Close leaves the room and releases the connection
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	wasActive := c.isActive
	c.isActive = false
	c.mu.Unlock()

	if conn != nil && wasActive {
		c.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// LocalTrack is an outbound audio track published by this client
type LocalTrack struct {
	client *Client
	info   TrackInfo
}

// Info returns the track's descriptor
func (t *LocalTrack) Info() TrackInfo {
	return t.info
}

// WriteFrame sends one chunk of PCM audio on the track
func (t *LocalTrack) WriteFrame(pcm []byte) error {
	return t.client.writeEnvelope(envelope{
		Event:      eventMedia,
		TrackSID:   t.info.SID,
		Media:      pcm,
		SampleRate: t.info.SampleRate,
	})
}

// Unpublish removes the track from the room
func (t *LocalTrack) Unpublish() error {
	info := t.info
	return t.client.writeEnvelope(envelope{Event: eventUnpublishTrack, Track: &info})
}
