package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/linguacall/walkie-gateway/internal/config"
	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/resilience"
	"github.com/linguacall/walkie-gateway/internal/room"
	"github.com/linguacall/walkie-gateway/internal/router"
	"github.com/linguacall/walkie-gateway/internal/walkie"
)

// playbackSink receives translated audio for one bound track. The terminal
// client has no audio output, so it just accounts for what it receives.
type playbackSink struct {
	speakerID string
	bytes     int
}

func (s *playbackSink) WriteFrame(pcm []byte, sampleRate int) error {
	s.bytes += len(pcm)
	return nil
}

func (s *playbackSink) Close() error {
	fmt.Printf("\n[audio] received %d bytes of translated speech from %s\n", s.bytes, s.speakerID)
	return nil
}

func main() {
	identity := flag.String("identity", config.GetEnv("CLIENT_IDENTITY", ""), "participant identity (required)")
	language := flag.String("language", config.GetEnv("CLIENT_LANGUAGE", "en"), "participant language code")
	roomName := flag.String("room", "", "room to join (overrides ROOM_NAME)")
	flag.Parse()

	if *identity == "" {
		fmt.Fprintln(os.Stderr, "usage: client -identity <name> [-language <code>] [-room <name>]")
		os.Exit(1)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *roomName != "" {
		cfg.RoomName = *roomName
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	rtr := router.NewRouter(*identity, cfg.AgentIdentity, cfg.TrackPrefix,
		func(track room.TrackInfo, speakerID string) (router.Sink, error) {
			return &playbackSink{speakerID: speakerID}, nil
		})
	defer rtr.Close()

	var engine *walkie.Engine

	handlers := room.Handlers{
		OnData: func(msg room.DataMessage) {
			engine.HandleData(msg)
		},
		OnTrackSubscribed: func(t room.TrackInfo) {
			if err := rtr.HandleTrackSubscribed(t); err != nil {
				logger.Warn().Err(err).Str("track", t.Name).Msg("Failed to bind track")
			}
		},
		OnTrackUnsubscribed: func(t room.TrackInfo) {
			rtr.HandleTrackUnsubscribed(t.SID)
		},
		OnMedia: rtr.HandleMedia,
		OnParticipantJoined: func(p room.ParticipantInfo) {
			fmt.Printf("\n* %s joined the call\n", p.Identity)
		},
		OnParticipantLeft: func(p room.ParticipantInfo) {
			fmt.Printf("\n* %s left the call\n", p.Identity)
		},
		OnDisconnected: func(err error) {
			fmt.Printf("\n* disconnected: %v\n", err)
		},
	}

	reconnectCfg := &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	client := room.NewClient(
		cfg.RoomServerURL,
		cfg.RoomName,
		room.ParticipantInfo{Identity: *identity, Language: *language},
		handlers,
		reconnectCfg,
	)

	engine = walkie.NewEngine(*identity, client, walkie.Options{
		Topic:             cfg.SignalTopic,
		RecordingTimeout:  cfg.RecordingTimeout(),
		ProcessingTimeout: cfg.ProcessingTimeout(),
		OnUpdate:          printSnapshot,
	})
	defer engine.Close()

	if err := client.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to join room")
	}
	defer client.Close()

	fmt.Printf("Joined room %q as %s (%s)\n", cfg.RoomName, *identity, *language)
	fmt.Println("Press Enter to start or stop your turn, q to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "q", "quit":
			fmt.Println("Leaving the call.")
			return
		case "c":
			engine.ClearError()
		default:
			if err := engine.ToggleTurn(); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func printSnapshot(snap walkie.Snapshot) {
	switch snap.State {
	case walkie.StateIdle:
		if snap.Err != "" {
			fmt.Printf("\n! %s (press c to dismiss)\n> ", snap.Err)
			return
		}
		fmt.Print("\n[idle] press Enter to talk\n> ")
	case walkie.StateRecording:
		if snap.IsMyTurn {
			fmt.Print("\n[recording] press Enter to finish\n> ")
		} else {
			fmt.Printf("\n[recording] %s is talking\n> ", snap.ActiveSpeakerID)
		}
	case walkie.StateProcessing:
		fmt.Print("\n[processing] translating...\n> ")
	case walkie.StatePlaying:
		if n := len(snap.Transcripts); n > 0 {
			last := snap.Transcripts[n-1]
			fmt.Printf("\n[playing] %s: %q -> %q\n> ", last.SpeakerID, last.OriginalText, last.TranslatedText)
		}
	}
}
