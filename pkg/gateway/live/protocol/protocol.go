// Package protocol defines the live channel wire frames.
//
// The live channel carries JSON text frames plus raw binary frames. Binary
// frames are audio chunks for the attached session. JSON frames use a type
// envelope and are validated on decode.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientAttach binds the connection to a session. It must be the first frame
// a client sends; the token is the one issued when the response started.
type ClientAttach struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ResponseID      string `json:"response_id"`
	Token           string `json:"token"`
}

// ClientAudioChunk carries base64 audio for clients that cannot send binary
// frames. Binary WebSocket frames are the preferred transport.
type ClientAudioChunk struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

// ClientSpeak asks the server to synthesize the given text and return audio.
type ClientSpeak struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Format string `json:"format,omitempty"`
}

// ClientTranscript asks for a transcript of the audio buffered so far. The
// session stays open and keeps accepting audio.
type ClientTranscript struct {
	Type string `json:"type"`
}

// ClientEnd closes the session: buffered audio is transcribed and the
// transcript returned before the connection closes.
type ClientEnd struct {
	Type string `json:"type"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "attach":
		var msg ClientAttach
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid attach frame", "")
		}
		if err := ValidateAttach(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_chunk.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "speak":
		var msg ClientSpeak
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid speak frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("speak.text is required", "text")
		}
		switch f := strings.TrimSpace(msg.Format); f {
		case "", "mp3", "wav":
			msg.Format = f
		default:
			return nil, unsupported("unsupported speak format", "format")
		}
		return msg, nil
	case "transcript":
		var msg ClientTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcript frame", "")
		}
		return msg, nil
	case "end":
		var msg ClientEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid end frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateAttach(msg ClientAttach) error {
	if v := strings.TrimSpace(msg.ProtocolVersion); v != "" && v != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return badRequest("attach.session_id is required", "session_id")
	}
	if strings.TrimSpace(msg.ResponseID) == "" {
		return badRequest("attach.response_id is required", "response_id")
	}
	if strings.TrimSpace(msg.Token) == "" {
		return badRequest("attach.token is required", "token")
	}
	return nil
}

// ServerAttached acknowledges a successful attach.
type ServerAttached struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ResponseID      string `json:"response_id"`
}

// ServerAudioAck confirms receipt of buffered audio.
type ServerAudioAck struct {
	Type   string `json:"type"`
	Seq    int64  `json:"seq,omitempty"`
	Bytes  int    `json:"bytes"`
	Chunks int    `json:"chunks"`
}

// ServerSpeech carries synthesized audio for a speak request.
type ServerSpeech struct {
	Type     string `json:"type"`
	Format   string `json:"format"`
	AudioB64 string `json:"audio_b64"`
}

// ServerTranscript carries the final transcript produced when a session ends.
type ServerTranscript struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Text       string `json:"text"`
}

// ServerError reports a session-scoped failure. Close reports whether the
// server will drop the connection after sending it.
type ServerError struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Param     string `json:"param,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Close     bool   `json:"close,omitempty"`
}
