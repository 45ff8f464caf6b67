package live

import "github.com/rhazera/lingora/pkg/codec"

// Wire messages exchanged with the streaming speech endpoint. Audio payloads
// are base64 s16le PCM with the rate declared in the mime type, never in the
// bytes themselves.

type setupMessage struct {
	Setup setupBody `json:"setup"`
}

type setupBody struct {
	Model               string `json:"model,omitempty"`
	SystemPrompt        string `json:"systemPrompt,omitempty"`
	Voice               string `json:"voice,omitempty"`
	InputTranscription  bool   `json:"inputTranscription"`
	OutputTranscription bool   `json:"outputTranscription"`
}

type audioMessage struct {
	Audio *audioPayload `json:"audio,omitempty"`
}

type audioPayload struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type serverMessage struct {
	SetupComplete    bool          `json:"setupComplete,omitempty"`
	InputTranscript  string        `json:"inputTranscript,omitempty"`
	OutputTranscript string        `json:"outputTranscript,omitempty"`
	TurnComplete     bool          `json:"turnComplete,omitempty"`
	Interrupted      bool          `json:"interrupted,omitempty"`
	Audio            *audioPayload `json:"audio,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// ServerEvent is the inbound event union consumed by the session dispatch
// loop. Several fields may be set on a single event; arrival order on the
// Events channel matches the endpoint's emission order.
type ServerEvent struct {
	InputTranscript  string
	OutputTranscript string
	TurnComplete     bool
	Interrupted      bool
	Audio            *codec.Chunk
	Err              error
}
