package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocRequests(t *testing.T) {
	query := []byte(`{"filters":[{"field":"age","operator":">","value":28}]}`)

	tests := []struct {
		name   string
		frame  []byte
		opCode byte
		body   []byte
		update []byte
	}{
		{"insert", EncodeInsertRequest("users", []byte(`{"name":"Alice"}`)), OpInsert, []byte(`{"name":"Alice"}`), nil},
		{"find", EncodeFindRequest("users", query), OpFind, query, nil},
		{"update", EncodeUpdateRequest("users", query, []byte(`{"set":{"a":1}}`)), OpUpdate, query, []byte(`{"set":{"a":1}}`)},
		{"delete", EncodeDeleteRequest("users", query), OpDelete, query, nil},
		{"get", EncodeGetRequest("users", 42), OpGet, []byte("42"), nil},
		{"count", EncodeCountRequest("users", nil), OpCount, []byte{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.opCode, req.OpCode)
			assert.Equal(t, "users", req.Collection)
			assert.Equal(t, tt.body, req.Body)
			assert.Equal(t, tt.update, req.Update)
		})
	}
}

func TestGetRequestID(t *testing.T) {
	req, err := DecodeRequest(EncodeGetRequest("users", 1234567))
	require.NoError(t, err)
	id, err := req.ID()
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), id)

	req.Body = []byte("x1")
	_, err = req.ID()
	assert.Error(t, err)
}

func TestDecodeRequestErrors(t *testing.T) {
	valid := EncodeUpdateRequest("users", []byte(`{}`), []byte(`{}`))

	_, err := DecodeRequest(valid[:3])
	assert.Error(t, err, "short header")

	_, err = DecodeRequest(valid[:len(valid)-1])
	assert.Error(t, err, "truncated payload")

	unknown := append([]byte{}, valid...)
	unknown[0] = 0x01
	_, err = DecodeRequest(unknown)
	assert.Error(t, err, "unknown opcode")

	// update frame relabelled as insert still decodes its first body
	asInsert := append([]byte{}, valid...)
	asInsert[0] = OpInsert
	req, err := DecodeRequest(asInsert)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), req.Body)

	// insert frame relabelled as update is missing its second body
	missing := EncodeInsertRequest("users", []byte(`{}`))
	missing[0] = OpUpdate
	_, err = DecodeRequest(missing)
	assert.Error(t, err)
}

func TestResponses(t *testing.T) {
	resp, err := DecodeResponse(EncodeValueResponse([]byte(`{"id":1}`)))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, []byte(`{"id":1}`), resp.Value)

	resp, err = DecodeResponse(EncodeOKResponse())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Nil(t, resp.Value)

	resp, err = DecodeResponse(EncodeNotFoundResponse())
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, resp.Status)

	resp, err = DecodeResponse(EncodeErrorResponse(errors.New("boom")))
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "boom", resp.Error)

	_, err = DecodeResponse([]byte{0x09, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestReadFrame(t *testing.T) {
	first := EncodeFindRequest("users", []byte(`{"limit":1}`))
	second := EncodeGetRequest("orders", 7)

	r := bytes.NewReader(append(append([]byte{}, first...), second...))

	frame, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, first, frame)

	frame, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, second, frame)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{OpFind, 0xff, 0xff, 0xff, 0xff}))
	assert.Error(t, err)
}

func TestReadFrameTruncated(t *testing.T) {
	frame := EncodeInsertRequest("users", []byte(`{"a":1}`))
	_, err := ReadFrame(bytes.NewReader(frame[:len(frame)-2]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
