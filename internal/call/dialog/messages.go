package dialog

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Control events sent to the client to drive its UI state.
const (
	ControlEmmaSpeaking = "emma_speaking"
	ControlListening    = "listening"
	ControlCallEnded    = "call_ended"
)

// defaultCodec is assumed for audio sessions that never announced one.
const (
	defaultCodec        = "webm-opus"
	defaultSampleRateHz = 16000
)

// controlMessage tells the client what state the interviewer is in.
type controlMessage struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

// textMessage carries one utterance, inbound or outbound.
type textMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// audioChunkMessage carries one base64-encoded audio fragment.
type audioChunkMessage struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Codec   string `json:"codec"`
	Seq     int    `json:"seq"`
	DataB64 string `json:"data_b64"`
	IsFinal bool   `json:"is_final"`
}

// clientMessage is the loosely-typed union of everything the browser sends:
// text utterances, audio session markers, and audio chunks.
type clientMessage struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	Codec        string `json:"codec"`
	SampleRateHz int    `json:"sample_rate_hz"`
	DataB64      string `json:"data_b64"`
	IsFinal      bool   `json:"is_final"`
}

// parseClientMessage decodes one inbound frame. ok is false when the frame is
// not a JSON object; such frames are treated as bare text utterances.
func parseClientMessage(raw string) (clientMessage, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return clientMessage{}, false
	}
	var msg clientMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return clientMessage{}, false
	}
	msg.Type = strings.ToLower(strings.TrimSpace(msg.Type))
	return msg, true
}

// decodeAudioChunk decodes a base64 payload, tolerating missing padding.
// Undecodable data is dropped rather than failing the session.
func decodeAudioChunk(dataB64 string) []byte {
	if dataB64 == "" {
		return nil
	}
	if b, err := base64.StdEncoding.DecodeString(dataB64); err == nil {
		return b
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(dataB64, "="))
	if err != nil {
		return nil
	}
	return b
}
