package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageKind identifies the payload carried by a frame.
type MessageKind byte

const (
	KindRegister MessageKind = iota + 1
	KindUnregister
	KindHeartbeat
	KindTradeSignal
	KindRequestConfig
	KindSlaveConfig
	KindMasterConfig
	KindGlobalSettings
)

func (k MessageKind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindUnregister:
		return "unregister"
	case KindHeartbeat:
		return "heartbeat"
	case KindTradeSignal:
		return "trade_signal"
	case KindRequestConfig:
		return "request_config"
	case KindSlaveConfig:
		return "slave_config"
	case KindMasterConfig:
		return "master_config"
	case KindGlobalSettings:
		return "global_settings"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// maxFrameBody bounds a single frame to guard against a corrupt or hostile
// length prefix forcing an unbounded allocation.
const maxFrameBody = 1 << 20

// EncodeFrame wraps a kind byte and record body with a 4-byte big-endian
// length prefix covering both.
func EncodeFrame(kind MessageKind, body []byte) []byte {
	out := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(1+len(body)))
	out[4] = byte(kind)
	copy(out[5:], body)
	return out
}

// ReadFrame reads one length-delimited frame from r, blocking until the
// full frame arrives or the connection fails.
func ReadFrame(r io.Reader) (MessageKind, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > maxFrameBody {
		return 0, nil, fmt.Errorf("%w: frame length %d out of bounds", ErrMalformedFrame, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	return MessageKind(buf[0]), buf[1:], nil
}

// DecodeFrameBytes decodes a single frame already fully read into memory,
// for callers that receive a frame as a byte slice instead of a stream
// (e.g. a PUB subscriber reading one topic-framed message at a time).
func DecodeFrameBytes(data []byte) (MessageKind, []byte, error) {
	return ReadFrame(bytes.NewReader(data))
}

const topicSeparator = 0x20

// GlobalSettingsTopic is the reserved PUB topic carrying broker-wide
// settings pushed to every connected EA regardless of account.
const GlobalSettingsTopic = "__global__"

// EncodeTopicFrame prefixes a frame with its routing topic for the PUB
// socket: topic bytes, a single 0x20 separator, then the frame body.
func EncodeTopicFrame(topic string, body []byte) []byte {
	out := make([]byte, 0, len(topic)+1+len(body))
	out = append(out, topic...)
	out = append(out, topicSeparator)
	out = append(out, body...)
	return out
}

// DecodeTopicFrame splits a PUB-socket frame on the first 0x20 byte.
func DecodeTopicFrame(data []byte) (topic string, body []byte, err error) {
	idx := bytes.IndexByte(data, topicSeparator)
	if idx < 0 {
		return "", nil, fmt.Errorf("%w: missing topic separator", ErrMalformedFrame)
	}
	return string(data[:idx]), data[idx+1:], nil
}
