// Package facade implements the conversation façade: a single
// process_turn entry point that accepts either text or audio input,
// drives one orchestrator turn, and returns either a text or audio
// response. It is the component transports (HTTP, WS) call into; it never
// talks to a wire protocol itself.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// InputMode selects how the caller supplied their turn input.
type InputMode string

const (
	InputModeText  InputMode = "text"
	InputModeAudio InputMode = "audio"
)

// OutputMode selects what shape of response the caller wants back.
type OutputMode string

const (
	OutputModeText  OutputMode = "text"
	OutputModeAudio OutputMode = "audio"
	OutputModeBoth  OutputMode = "both"
)

// InputSpec describes one turn's input, text or audio.
type InputSpec struct {
	Mode        InputMode
	Text        string
	AudioPCM    []byte
	AudioFormat string
}

// OutputSpec describes how the caller wants the response synthesized.
type OutputSpec struct {
	Mode   OutputMode
	Voice  string
	Speed  int
	Volume int
	Pitch  int
}

// RecognitionResult is what a SpeechRecognizer returns for one audio clip.
type RecognitionResult struct {
	Text         string
	Success      bool
	ErrorCode    string
	ErrorMessage string
}

// SpeechRecognizer is the STT collaborator the façade consumes but does
// not implement — a real deployment wires in a provider-specific client.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, pcm []byte, format string) (RecognitionResult, error)
}

// SpeechSynthesizer is the TTS collaborator the façade consumes but does
// not implement. SynthesizeStream returns a channel of audio byte chunks;
// the channel closes when synthesis finishes and is never sent to again
// after an error is returned on it through ctx cancellation.
type SpeechSynthesizer interface {
	SynthesizeStream(ctx context.Context, text, voice string, speed, volume, pitch int) (<-chan []byte, error)
}

// Result is the envelope process_turn returns, mirroring the
// success/session_id/user_input/agent_response/output_mode/metadata shape
// a transport serializes back to the caller.
type Result struct {
	Success       bool
	SessionID     string
	UserInput     string
	AgentResponse string
	OutputMode    OutputMode
	InputMetadata map[string]any
	AgentMetadata map[string]any
	AudioSize     int
	Voice         string
	Error         string
	Timestamp     time.Time

	// Audio carries the synthesized response when OutputMode is audio or
	// both. It is assembled by draining the synthesizer's stream.
	Audio []byte
}

// Facade composes the orchestrator with session storage and the optional
// STT/TTS collaborators behind a single process_turn operation.
type Facade struct {
	orchestrator *agent.Orchestrator
	sessions     sessions.Store
	recognizer   SpeechRecognizer
	synthesizer  SpeechSynthesizer
}

// New creates a Facade. recognizer/synthesizer may be nil; audio input or
// output is then rejected with a descriptive error instead of panicking.
func New(orchestrator *agent.Orchestrator, store sessions.Store, recognizer SpeechRecognizer, synthesizer SpeechSynthesizer) *Facade {
	return &Facade{orchestrator: orchestrator, sessions: store, recognizer: recognizer, synthesizer: synthesizer}
}

// ProcessTurn is the façade's single entry point: normalize input (running
// STT if needed), load/create the session, drive one orchestrator turn,
// persist it, and — for audio output — synthesize the response.
func (f *Facade) ProcessTurn(ctx context.Context, in InputSpec, out OutputSpec, sessionID, userID string) (*Result, error) {
	if sessionID == "" {
		sessionID = "conv_" + uuid.NewString()
	}

	userInput, inputMeta, err := f.resolveInput(ctx, in)
	if err != nil {
		return &Result{Success: false, SessionID: sessionID, Error: err.Error(), Timestamp: time.Now()}, nil
	}

	session, err := f.sessions.GetOrCreate(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create session: %w", err)
	}

	state, _, err := f.orchestrator.RunTurn(ctx, session, userInput, agent.NopSink{})
	if err != nil {
		return nil, fmt.Errorf("run turn: %w", err)
	}

	result := &Result{
		Success:       state.ErrorState == "",
		SessionID:     sessionID,
		UserInput:     userInput,
		AgentResponse: state.AgentResponse,
		OutputMode:    out.Mode,
		InputMetadata: inputMeta,
		AgentMetadata: map[string]any{
			"intent":          state.CurrentIntent,
			"tool_iterations": state.ToolIterationCount,
			"cancelled":       state.Cancelled,
		},
		Voice:     out.Voice,
		Timestamp: time.Now(),
	}
	if state.ErrorState != "" {
		result.Error = state.ErrorState
	}

	if out.Mode == OutputModeAudio || out.Mode == OutputModeBoth {
		audio, err := f.synthesize(ctx, state.AgentResponse, out)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			return result, nil
		}
		result.Audio = audio
		result.AudioSize = len(audio)
	}

	return result, nil
}

// ProcessTurnStream is the streaming-audio-output variant: it runs the
// turn to completion synchronously (the orchestrator already streams
// tokens to the emitter sink during RunTurn; here the façade only needs
// the final text) and returns a channel of synthesized audio chunks as
// they become available, so a transport can begin writing the response
// body before synthesis finishes.
func (f *Facade) ProcessTurnStream(ctx context.Context, in InputSpec, out OutputSpec, sessionID, userID string) (<-chan []byte, *Result, error) {
	if f.synthesizer == nil {
		return nil, nil, fmt.Errorf("audio output requested but no speech synthesizer is configured")
	}

	result, err := f.ProcessTurn(ctx, in, OutputSpec{Mode: OutputModeText}, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return nil, result, nil
	}

	audioCh, err := f.synthesizer.SynthesizeStream(ctx, result.AgentResponse, out.Voice, out.Speed, out.Volume, out.Pitch)
	if err != nil {
		return nil, nil, fmt.Errorf("synthesize stream: %w", err)
	}
	result.OutputMode = out.Mode
	result.Voice = out.Voice
	return audioCh, result, nil
}

func (f *Facade) resolveInput(ctx context.Context, in InputSpec) (string, map[string]any, error) {
	switch in.Mode {
	case InputModeAudio:
		if f.recognizer == nil {
			return "", nil, fmt.Errorf("audio input requested but no speech recognizer is configured")
		}
		if len(in.AudioPCM) == 0 {
			return "", nil, fmt.Errorf("audio input is empty")
		}
		recog, err := f.recognizer.Recognize(ctx, in.AudioPCM, in.AudioFormat)
		if err != nil {
			return "", nil, fmt.Errorf("recognize audio: %w", err)
		}
		meta := map[string]any{
			"input_mode":   string(InputModeAudio),
			"audio_format": in.AudioFormat,
			"stt_success":  recog.Success,
		}
		if !recog.Success {
			return "", meta, fmt.Errorf("speech recognition failed: %s", recog.ErrorMessage)
		}
		return recog.Text, meta, nil
	default:
		return in.Text, map[string]any{"input_mode": string(InputModeText)}, nil
	}
}

func (f *Facade) synthesize(ctx context.Context, text string, out OutputSpec) ([]byte, error) {
	if f.synthesizer == nil {
		return nil, fmt.Errorf("audio output requested but no speech synthesizer is configured")
	}
	ch, err := f.synthesizer.SynthesizeStream(ctx, text, out.Voice, out.Speed, out.Volume, out.Pitch)
	if err != nil {
		return nil, fmt.Errorf("synthesize stream: %w", err)
	}
	var audio []byte
	for chunk := range ch {
		audio = append(audio, chunk...)
	}
	return audio, nil
}

// History returns the persisted message history for a session, used by
// the transport's GET /chat/history/{id} route.
func (f *Facade) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	return f.sessions.GetHistory(ctx, sessionID, limit)
}
