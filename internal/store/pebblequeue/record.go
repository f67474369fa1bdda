package pebblequeue

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"time"

	"github.com/rzbill/haywire/pkg/message"
)

// ErrCorruptRecord is returned when a stored record fails its checksum.
var ErrCorruptRecord = errors.New("corrupt message record")

// Record encoding: varint headerLen | header | body | crc32c(header|body).
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type recordHeader struct {
	ID            string            `json:"id"`
	CorrelationID string            `json:"cid,omitempty"`
	Headers       map[string]string `json:"h,omitempty"`
	EnqueuedAtMs  int64             `json:"ts"`
}

func encodeMessage(m *message.Message) ([]byte, error) {
	header, err := json.Marshal(recordHeader{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		Headers:       m.Headers,
		EnqueuedAtMs:  m.EnqueuedAt.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	return encodeRecord(header, m.Body), nil
}

func decodeMessage(seq uint64, b []byte) (*message.Message, error) {
	header, body, ok := decodeRecord(b)
	if !ok {
		return nil, ErrCorruptRecord
	}
	var h recordHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	return &message.Message{
		ID:            h.ID,
		Sequence:      seq,
		CorrelationID: h.CorrelationID,
		Headers:       h.Headers,
		Body:          body,
		EnqueuedAt:    time.UnixMilli(h.EnqueuedAtMs).UTC(),
	}, nil
}

func encodeRecord(header, body []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(header)+len(body)+4)
	out = binary.AppendUvarint(out, uint64(len(header)))
	out = append(out, header...)
	out = append(out, body...)
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, body)
	return binary.BigEndian.AppendUint32(out, crc)
}

// decodeRecord returns copies of the header and body.
func decodeRecord(b []byte) (header, body []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || hlen > uint64(len(b)) || n+int(hlen)+4 > len(b) {
		return nil, nil, false
	}
	header = b[n : n+int(hlen)]
	body = b[n+int(hlen) : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, body)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return nil, nil, false
	}
	header = append([]byte(nil), header...)
	if len(body) > 0 {
		body = append([]byte(nil), body...)
	} else {
		body = nil
	}
	return header, body, true
}
