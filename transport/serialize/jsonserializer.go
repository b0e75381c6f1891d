package serialize

import (
	"errors"

	"github.com/canopyio/canopy/wamp"
	"github.com/ugorji/go/codec"
)

// JSONSerializer is an implementation of Serializer that handles
// serializing and deserializing JSON encoded payloads.  The wire encoding
// is a JSON array: [TYPE, field1, field2, ...], with trailing optional
// payload segments appended only when present.
type JSONSerializer struct{}

// Serialize encodes a Message into a JSON array payload.
func (s *JSONSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	var b []byte
	jsh := &codec.JsonHandle{}
	return b, codec.NewEncoderBytes(&b, jsh).Encode(msgToList(msg))
}

// Deserialize decodes a JSON array payload into a Message.  The decoded
// message is run through structural validation; a validation failure is a
// protocol error and the caller is expected to close the transport.
func (s *JSONSerializer) Deserialize(data []byte) (wamp.Message, error) {
	var v []interface{}
	jsh := &codec.JsonHandle{}
	err := codec.NewDecoderBytes(data, jsh).Decode(&v)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, errEmptyMessage
	}

	// The JSON decoder yields numbers as uint64 or int64 depending on
	// sign; the type code is always a small positive integer.
	typ, ok := wamp.AsInt64(v[0])
	if !ok {
		return nil, errors.New("invalid message: type code is not an integer")
	}
	msg, err := listToMsg(wamp.MessageType(typ), v)
	if err != nil {
		return nil, err
	}
	if err = wamp.Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
