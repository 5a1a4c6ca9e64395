// Package events defines the typed events the orchestrator reports while
// running a voice loop.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - capture.*
//   - interruption.*
//   - session.*
//
// user_input events
//
//   - UserUtteranceCaptured (user_input.utterance_captured): segmentation
//     finalized an utterance.
//   - UserTranscriptFinal (user_input.transcript_final): transcript for the
//     utterance, or a prompt sent directly.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): cleaned response text
//     about to be spoken.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): a playback job
//     became active.
//   - AssistantPlaybackEnded (assistant_playback.ended): the active job ended;
//     includes how it ended.
//
// capture events
//
//   - CaptureStateChanged (capture.state_changed): capture switched between
//     listening and paused.
//
// interruption events
//
//   - InterruptionReceived (interruption.received): an interrupt reached the
//     coordinator; reports whether it stopped playback.
//
// session events
//
//   - ShutdownRequested (session.shutdown_requested): the user asked the
//     assistant to stop.
package events
