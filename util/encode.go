package util

import (
	"encoding/binary"
	"errors"
	"strings"
)

// EncodeMessage serializes topic and payload into bytes.
func EncodeMessage(topic string, payload string) []byte {
	topicBytes := []byte(topic)
	payloadBytes := []byte(payload)
	data := make([]byte, 2+len(topicBytes)+len(payloadBytes))
	binary.BigEndian.PutUint16(data[:2], uint16(len(topicBytes)))
	copy(data[2:2+len(topicBytes)], topicBytes)
	copy(data[2+len(topicBytes):], payloadBytes)
	return data
}

// DecodeMessage deserializes bytes into topic and payload.
func DecodeMessage(data []byte) (string, string, error) {
	if len(data) < 2 {
		return "", "", errors.New("data too short")
	}
	topicLen := binary.BigEndian.Uint16(data[:2])
	if int(topicLen)+2 > len(data) {
		return "", "", errors.New("invalid topic length")
	}
	topic := string(data[2 : 2+topicLen])
	payload := string(data[2+int(topicLen):])
	return topic, payload, nil
}

// ParseCommand splits "NAME k1=v1 k2=v2" into the name and its arguments.
// Tokens without '=' are ignored.
func ParseCommand(line string) (string, map[string]string) {
	fields := strings.Fields(line)
	args := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return "", args
	}
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		args[k] = v
	}
	return fields[0], args
}

// IsErrorResponse reports whether a broker reply carries the ERROR: prefix.
func IsErrorResponse(resp string) bool {
	return strings.HasPrefix(strings.TrimSpace(resp), "ERROR:")
}

// ErrorText strips the ERROR: prefix from a broker reply.
func ErrorText(resp string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(resp), "ERROR:"))
}
