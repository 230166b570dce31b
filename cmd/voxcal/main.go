// Command voxcal is a terminal client for the voice-enabled scheduling
// assistant. It connects one voice session, streams the default
// microphone to the backend, and plays synthesized responses while
// rendering transcripts, status, and latency in a small TUI.
//
// Configuration comes from flags or the VOXCAL_ENDPOINT and VOXCAL_TOKEN
// environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/voxcal/voxcal-core/core"
	"github.com/voxcal/voxcal-core/core/audio/miniaudio"
	otosink "github.com/voxcal/voxcal-core/core/audio/oto"
	"github.com/voxcal/voxcal-core/core/audio/portaudio"
)

func main() {
	endpoint := flag.String("endpoint", "", "voice channel endpoint (defaults to VOXCAL_ENDPOINT)")
	token := flag.String("token", "", "session token (defaults to VOXCAL_TOKEN)")
	backend := flag.String("backend", "miniaudio", "audio backend: miniaudio, or portaudio (capture) with oto (playback)")
	noAudio := flag.Bool("no-audio", false, "run without audio devices (events and text only)")
	flag.Parse()

	if err := run(*endpoint, *token, *backend, *noAudio); err != nil {
		fmt.Fprintf(os.Stderr, "voxcal: %v\n", err)
		os.Exit(1)
	}
}

func run(endpoint, token, backend string, noAudio bool) error {
	sessionOpts := []session.SessionOption{}
	if endpoint != "" {
		sessionOpts = append(sessionOpts, session.WithEndpoint(endpoint))
	}
	if token != "" {
		sessionOpts = append(sessionOpts, session.WithCredential(token))
	}

	var deviceWarning string
	if !noAudio {
		deviceOpts, cleanup, err := audioBackend(backend)
		if err != nil {
			// A headless run is still useful for watching transcripts.
			deviceWarning = fmt.Sprintf("audio devices unavailable, continuing without sound: %v", err)
		} else {
			defer cleanup()
			sessionOpts = append(sessionOpts, deviceOpts...)
		}
	}

	voice := session.NewSession(sessionOpts...)

	events := make(chan uiEvent, 64)
	publish := func(kind, text string, ok bool) {
		select {
		case events <- uiEvent{kind: kind, text: text, ok: ok}:
		default:
			// UI lagging; drop rather than stall the dispatch goroutine.
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := voice.Connect(ctx, session.WithCallbacks(session.Callbacks{
		OnStatus:  func(text string) { publish("status", text, false) },
		OnWarning: func(text string) { publish("warning", text, false) },
		OnError:   func(text string) { publish("error", text, false) },
		OnTranscript: func(text string, isFinal bool) {
			if isFinal {
				publish("transcript", text, false)
			} else {
				publish("partial", text, false)
			}
		},
		OnThinkingStart: func() { publish("thinking_start", "", false) },
		OnThinkingEnd:   func() { publish("thinking_end", "", false) },
		OnAssistantMessage: func(text string, tools []string) {
			if len(tools) > 0 {
				text = fmt.Sprintf("%s (via %v)", text, tools)
			}
			publish("assistant", text, false)
		},
		OnConnectionChange: func(connected bool) { publish("connection", "", connected) },
		OnLatencyMetric: func(millis float64) {
			publish("latency", strconv.FormatFloat(millis, 'f', -1, 64), false)
		},
	}))
	if err != nil {
		return fmt.Errorf("failed to connect voice session: %w", err)
	}
	defer voice.Close()

	if deviceWarning != "" {
		publish("warning", deviceWarning, false)
	}

	program := tea.NewProgram(newModel(voice, events), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// audioBackend builds the device options for the selected backend and
// returns the teardown for whatever was acquired.
func audioBackend(backend string) ([]session.SessionOption, func(), error) {
	switch backend {
	case "miniaudio":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, nil, err
		}
		opts := []session.SessionOption{
			session.WithCaptureClient(client.Capture()),
			session.WithPlaybackSink(client.Playback()),
		}
		return opts, client.Close, nil

	case "portaudio":
		capture, err := portaudio.NewClient()
		if err != nil {
			return nil, nil, err
		}
		sink, err := otosink.NewSink()
		if err != nil {
			capture.Close()
			return nil, nil, err
		}
		opts := []session.SessionOption{
			session.WithCaptureClient(capture),
			session.WithPlaybackSink(sink),
		}
		return opts, func() {
			capture.Close()
			sink.Close()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown audio backend %q", backend)
}
