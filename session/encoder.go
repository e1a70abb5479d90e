package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const sessionFormatVersionCurrent = 1

// Encode serializes s into the compact binary form stored in Redis. The
// session ID is the key and is not part of the payload.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if len(s.Email) > math.MaxUint16 {
		return nil, errors.New("email too long")
	}
	if s.Stage > StageFullyAuthenticated {
		return nil, errors.New("invalid session stage")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 8 + 2 + len(s.Email) + 1 + 8 + 8)

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, s.UserID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(s.Email)
	buf.WriteByte(byte(s.Stage))

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a payload produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	if err := binary.Read(reader, binary.BigEndian, &s.UserID); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	s.Email = string(email)

	stage, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if Stage(stage) > StageFullyAuthenticated {
		return nil, errors.New("invalid session stage")
	}
	s.Stage = Stage(stage)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}
