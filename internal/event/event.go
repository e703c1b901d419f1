// Package event defines the wire-agnostic output event shared by the
// pipelines, the event bus, and the orchestrator.
package event

// Type is drawn from a closed set of internal event kinds. The socket
// adapter (internal/ws) translates these onto the external wire vocabulary.
type Type string

const (
	TypeSentence          Type = "sentence"
	TypeToolCall          Type = "tool_call"
	TypeExpression        Type = "expression"
	TypeAudio             Type = "audio"
	TypeAudioWithExpr     Type = "audio_with_expression"
	TypeTranscript        Type = "transcript"
	TypeError             Type = "error"
	TypeControl           Type = "control"
	TypeConnectionOpen    Type = "connection-established"
	TypeHistoryList       Type = "history-list"
	TypeHistoryData       Type = "history-data"
	TypeHistoryCleared    Type = "history-cleared"
	TypeNewHistoryCreated Type = "new-history-created"
	TypeHeartbeatAck      Type = "heartbeat-ack"
)

// Out is a tagged event emitted during a turn. Seq is monotonically
// increasing within one turn, starting at 0; the output pipeline's
// completion marker uses seq = last+1.
type Out struct {
	Type     Type
	Data     any
	Seq      int
	Metadata map[string]any
}

// New builds an Out event with an empty metadata map ready for annotation.
func New(t Type, data any, seq int) Out {
	return Out{Type: t, Data: data, Seq: seq, Metadata: map[string]any{}}
}

// SentenceData is the payload of a TypeSentence event.
type SentenceData struct {
	Text     string
	FromName string
}

// ToolCallData is the payload of a TypeToolCall event.
type ToolCallData struct {
	Name string
	Args map[string]any
}

// AudioData is the payload of a TypeAudio event.
type AudioData struct {
	AudioBase64 string
	Format      string
}

// ExpressionSegment mirrors a single timeline segment serialized for the
// wire.
type ExpressionSegment struct {
	Emotion   string  `json:"emotion"`
	Time      float64 `json:"time"`
	Duration  float64 `json:"duration"`
	Intensity float64 `json:"intensity"`
}

// AudioWithExpressionData is the payload of a TypeAudioWithExpr event.
type AudioWithExpressionData struct {
	AudioBase64    string
	Format         string
	Volumes        []float64
	Segments       []ExpressionSegment
	TotalDuration  float64
	Text           string
}
