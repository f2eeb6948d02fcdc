// Editor Client - drives an editor session over its websocket and prints
// every event it receives.
package main

import (
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	httpapi "transcript-editor-service/internal/http"
	"transcript-editor-service/internal/observability/logging"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/v1/session/ws", "Editor websocket URL")
	transcriptID := flag.String("transcript", "", "Transcript to load")
	duration := flag.Float64("duration", 0, "Audio duration in seconds")
	play := flag.Duration("play", 0, "Play for this long after loading")
	flag.Parse()

	logging.Init(logging.Config{Level: "debug", Format: "console", TimeFormat: time.RFC3339})

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("Failed to connect")
	}
	defer conn.Close()
	log.Info().Str("addr", *addr).Msg("Connected to editor")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				log.Info().Err(err).Msg("Connection closed")
				return
			}
			log.Info().Interface("payload", msg["payload"]).Msgf("<- %v", msg["type"])
		}
	}()

	send := func(cmd httpapi.Command) {
		log.Info().Str("command", cmd.Command).Msg("->")
		if err := conn.WriteJSON(cmd); err != nil {
			log.Fatal().Err(err).Msg("Failed to send command")
		}
	}

	if *transcriptID != "" {
		send(httpapi.Command{ID: "load", Command: "load", TranscriptID: *transcriptID, Duration: *duration})
	}
	if *play > 0 {
		send(httpapi.Command{ID: "play", Command: "play"})
		time.Sleep(*play)
		send(httpapi.Command{ID: "pause", Command: "pause"})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-done:
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
