package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Binary protocol format
//
// Frame format:
// [1 byte: OpCode][4 bytes: PayloadLength][Payload]
//
// OpCode values:
//   0x40 = INSERT
//   0x41 = FIND
//   0x42 = UPDATE
//   0x43 = DELETE (every document matching a query)
//   0x45 = GET (one document by id)
//   0x46 = COUNT
//
// Payload formats:
//
// INSERT: [2 bytes: collLen][collection][4 bytes: docLen][document json]
// FIND:   [2 bytes: collLen][collection][4 bytes: queryLen][query json]
// UPDATE: [2 bytes: collLen][collection][4 bytes: queryLen][query json][4 bytes: updateLen][update json]
// DELETE: [2 bytes: collLen][collection][4 bytes: queryLen][query json]
// GET:    [2 bytes: collLen][collection][4 bytes: idLen][decimal id]
// COUNT:  [2 bytes: collLen][collection][4 bytes: queryLen][query json]
//
// Response format:
// [1 byte: Status][4 bytes: PayloadLength][Payload]
//
// Status values:
//   0x00 = OK (payload is json, may be empty)
//   0x01 = Error (payload is the message)
//   0x02 = NotFound

const (
	// Operation codes
	OpInsert byte = 0x40
	OpFind   byte = 0x41
	OpUpdate byte = 0x42
	OpDelete byte = 0x43
	OpGet    byte = 0x45
	OpCount  byte = 0x46

	// Status codes
	StatusOK       byte = 0x00
	StatusError    byte = 0x01
	StatusNotFound byte = 0x02

	// Protocol constants
	HeaderSize       = 5
	MaxCollectionLen = 65535   // 2 bytes
	MaxPayloadLen    = 1 << 26 // 64MB
)

// Request represents a parsed binary request
type Request struct {
	OpCode     byte
	Collection string
	Body       []byte // document, query or decimal id depending on OpCode
	Update     []byte // UPDATE only
}

// ID parses the body of a GET request
func (r *Request) ID() (int64, error) {
	id, err := strconv.ParseInt(string(r.Body), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q", r.Body)
	}
	return id, nil
}

// Response represents a binary response
type Response struct {
	Status byte
	Value  []byte
	Error  string
}

// EncodeInsertRequest encodes an INSERT request
func EncodeInsertRequest(collection string, doc []byte) []byte {
	return encodeDocRequest(OpInsert, collection, doc)
}

// EncodeFindRequest encodes a FIND request
func EncodeFindRequest(collection string, query []byte) []byte {
	return encodeDocRequest(OpFind, collection, query)
}

// EncodeUpdateRequest encodes an UPDATE request
func EncodeUpdateRequest(collection string, query, update []byte) []byte {
	return encodeDocRequest(OpUpdate, collection, query, update)
}

// EncodeDeleteRequest encodes a DELETE request
func EncodeDeleteRequest(collection string, query []byte) []byte {
	return encodeDocRequest(OpDelete, collection, query)
}

// EncodeGetRequest encodes a GET request
func EncodeGetRequest(collection string, id int64) []byte {
	return encodeDocRequest(OpGet, collection, []byte(strconv.FormatInt(id, 10)))
}

// EncodeCountRequest encodes a COUNT request
func EncodeCountRequest(collection string, query []byte) []byte {
	return encodeDocRequest(OpCount, collection, query)
}

// Format: [1:opcode][4:payloadLen][2:collLen][collection]([4:len][body])...
func encodeDocRequest(opCode byte, collection string, bodies ...[]byte) []byte {
	collLen := len(collection)

	totalSize := HeaderSize + 2 + collLen
	for _, b := range bodies {
		totalSize += 4 + len(b)
	}
	buf := make([]byte, totalSize)

	pos := 0
	buf[pos] = opCode
	pos++

	payloadLen := totalSize - HeaderSize
	binary.BigEndian.PutUint32(buf[pos:], uint32(payloadLen))
	pos += 4

	binary.BigEndian.PutUint16(buf[pos:], uint16(collLen))
	pos += 2
	copy(buf[pos:], collection)
	pos += collLen

	for _, b := range bodies {
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(b)))
		pos += 4
		copy(buf[pos:], b)
		pos += len(b)
	}

	return buf
}

// ReadFrame reads one [1:code][4:len][payload] frame from r. It is used for
// both requests and responses.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint32(header[1:])
	if payloadLen > MaxPayloadLen {
		return nil, fmt.Errorf("frame too large: %d bytes", payloadLen)
	}

	frame := make([]byte, HeaderSize+int(payloadLen))
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// DecodeRequest parses a binary request
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("request too short")
	}

	opCode := data[0]
	payloadLen := binary.BigEndian.Uint32(data[1:5])

	if len(data) < HeaderSize+int(payloadLen) {
		return nil, fmt.Errorf("incomplete request")
	}

	payload := data[HeaderSize : HeaderSize+int(payloadLen)]

	switch opCode {
	case OpInsert, OpFind, OpDelete, OpGet, OpCount:
		return decodeDocRequest(opCode, payload, 1)
	case OpUpdate:
		return decodeDocRequest(opCode, payload, 2)
	default:
		return nil, fmt.Errorf("unknown opcode: 0x%02x", opCode)
	}
}

func decodeDocRequest(opCode byte, payload []byte, bodies int) (*Request, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("invalid payload for opcode 0x%02x", opCode)
	}

	req := &Request{OpCode: opCode}
	pos := 0

	// Collection
	collLen := int(binary.BigEndian.Uint16(payload[pos:]))
	pos += 2
	if len(payload) < pos+collLen {
		return nil, fmt.Errorf("invalid payload for opcode 0x%02x", opCode)
	}
	req.Collection = string(payload[pos : pos+collLen])
	pos += collLen

	for i := 0; i < bodies; i++ {
		if len(payload) < pos+4 {
			return nil, fmt.Errorf("invalid payload for opcode 0x%02x", opCode)
		}
		bodyLen := int(binary.BigEndian.Uint32(payload[pos:]))
		pos += 4
		if len(payload) < pos+bodyLen {
			return nil, fmt.Errorf("invalid payload for opcode 0x%02x", opCode)
		}
		body := payload[pos : pos+bodyLen]
		pos += bodyLen

		if i == 0 {
			req.Body = body
		} else {
			req.Update = body
		}
	}

	return req, nil
}

// EncodeOKResponse encodes a success response without a payload
func EncodeOKResponse() []byte {
	return EncodeValueResponse(nil)
}

// EncodeValueResponse encodes a success response carrying value
func EncodeValueResponse(value []byte) []byte {
	totalSize := HeaderSize + len(value)
	buf := make([]byte, totalSize)

	buf[0] = StatusOK
	binary.BigEndian.PutUint32(buf[1:], uint32(len(value)))
	copy(buf[HeaderSize:], value)

	return buf
}

// EncodeNotFoundResponse encodes a not-found response
func EncodeNotFoundResponse() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = StatusNotFound
	return buf
}

// EncodeErrorResponse encodes an error response
func EncodeErrorResponse(err error) []byte {
	errMsg := err.Error()
	totalSize := HeaderSize + len(errMsg)
	buf := make([]byte, totalSize)

	buf[0] = StatusError
	binary.BigEndian.PutUint32(buf[1:], uint32(len(errMsg)))
	copy(buf[HeaderSize:], errMsg)

	return buf
}

// DecodeResponse parses a binary response
func DecodeResponse(data []byte) (*Response, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("response too short")
	}

	resp := &Response{}
	resp.Status = data[0]
	payloadLen := binary.BigEndian.Uint32(data[1:5])

	if len(data) < HeaderSize+int(payloadLen) {
		return nil, fmt.Errorf("incomplete response")
	}

	payload := data[HeaderSize : HeaderSize+int(payloadLen)]

	switch resp.Status {
	case StatusOK:
		if len(payload) > 0 {
			resp.Value = payload
		}
	case StatusError:
		resp.Error = string(payload)
	case StatusNotFound:
		// No payload
	default:
		return nil, fmt.Errorf("unknown status: %d", resp.Status)
	}

	return resp, nil
}
