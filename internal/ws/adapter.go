package ws

import (
	"github.com/animavtuber/core/internal/event"
)

// wireRenames maps internal event.Type values onto the client's expected
// wire type strings (spec §4.10). Adapter is a fixed, stateless rename
// table plus payload shaping — it never mutates the original event.
var wireRenames = map[event.Type]string{
	event.TypeSentence:          "text",
	event.TypeAudio:             "audio",
	event.TypeAudioWithExpr:     "audio_with_expression",
	event.TypeExpression:        "expression",
	event.TypeTranscript:        "transcript",
	event.TypeError:             "error",
	event.TypeControl:           "control",
	event.TypeConnectionOpen:    "connection-established",
	event.TypeHistoryList:       "history-list",
	event.TypeHistoryData:       "history-data",
	event.TypeHistoryCleared:    "history-cleared",
	event.TypeNewHistoryCreated: "new-history-created",
	event.TypeHeartbeatAck:      "heartbeat-ack",
}

// ToWire translates one internal event into the externalized SinkMessage
// ready for JSON transport. Returns nil, false for event types with no wire
// mapping (e.g. an internal-only tool_call with no client-facing form).
func ToWire(evt event.Out) (map[string]any, bool) {
	wireType, ok := wireRenames[evt.Type]
	if !ok {
		return nil, false
	}

	msg := map[string]any{"type": wireType}

	switch evt.Type {
	case event.TypeSentence:
		data, _ := evt.Data.(event.SentenceData)
		msg["text"] = data.Text
		msg["seq"] = evt.Seq
		if data.FromName != "" {
			msg["from_name"] = data.FromName
		}
		if isComplete, _ := evt.Metadata["is_complete"].(bool); isComplete {
			msg["from_name"] = "AI"
		}
	case event.TypeAudio:
		data, _ := evt.Data.(event.AudioData)
		msg["audio_data"] = data.AudioBase64
		msg["format"] = data.Format
		msg["seq"] = evt.Seq
	case event.TypeAudioWithExpr:
		data, _ := evt.Data.(event.AudioWithExpressionData)
		msg["audio_data"] = data.AudioBase64
		msg["format"] = data.Format
		msg["volumes"] = data.Volumes
		msg["expressions"] = map[string]any{
			"segments":       toWireSegments(data.Segments),
			"total_duration": data.TotalDuration,
		}
		msg["text"] = data.Text
		msg["seq"] = evt.Seq
	case event.TypeExpression:
		expression, _ := evt.Data.(string)
		msg["expression"] = expression
		msg["timestamp"] = evt.Metadata["timestamp"]
	case event.TypeTranscript:
		text, _ := evt.Data.(string)
		msg["text"] = text
		msg["is_final"] = true
	case event.TypeError:
		errText, _ := evt.Data.(string)
		msg["message"] = errText
		msg["seq"] = evt.Seq
	case event.TypeControl:
		control, _ := evt.Data.(string)
		msg["text"] = control
	default:
		msg["data"] = evt.Data
	}

	return msg, true
}

func toWireSegments(segments []event.ExpressionSegment) []map[string]any {
	out := make([]map[string]any, len(segments))
	for i, s := range segments {
		out[i] = map[string]any{
			"emotion":   s.Emotion,
			"time":      s.Time,
			"duration":  s.Duration,
			"intensity": s.Intensity,
		}
	}
	return out
}
