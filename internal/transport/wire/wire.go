// Package wire defines the raw, codegen-free protobuf-wire-format framing
// the transport adapters (internal/transport/wsquery,
// internal/transport/grpcquery) use to carry query requests and sample
// replies. Built directly on protowire's varint/length-delimited/tag
// primitives, the same low-level approach internal/defrag/codec uses for
// message framing — no .proto file or generated types are involved,
// matching the pack's protobuf surface once the teacher's generated service
// types were excluded from the retrieval (see DESIGN.md).
package wire

import (
	"errors"

	"github.com/dspacecore/nbft/internal/sample"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedFrame is returned when a frame cannot be decoded.
var ErrMalformedFrame = errors.New("wire: malformed frame")

const (
	fieldQuerySelector protowire.Number = 1
	fieldQueryTarget   protowire.Number = 2
	fieldQueryTimeout  protowire.Number = 3

	fieldReplyKeyExpr  protowire.Number = 1
	fieldReplyPayload  protowire.Number = 2
	fieldReplySourceID protowire.Number = 3
	fieldReplySourceSN protowire.Number = 4

	fieldEnd protowire.Number = 1
)

// EncodeQuery serialises a recovery/history query request.
func EncodeQuery(selector, target string, timeoutMs int64) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldQuerySelector, protowire.BytesType)
	buf = protowire.AppendString(buf, selector)
	buf = protowire.AppendTag(buf, fieldQueryTarget, protowire.BytesType)
	buf = protowire.AppendString(buf, target)
	buf = protowire.AppendTag(buf, fieldQueryTimeout, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(timeoutMs))
	return buf
}

// DecodedQuery is the parsed result of DecodeQuery.
type DecodedQuery struct {
	Selector  string
	Target    string
	TimeoutMs int64
}

// DecodeQuery parses a query request encoded by EncodeQuery.
func DecodeQuery(raw []byte) (DecodedQuery, error) {
	var q DecodedQuery
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return DecodedQuery{}, ErrMalformedFrame
		}
		raw = raw[n:]
		switch {
		case num == fieldQuerySelector && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return DecodedQuery{}, ErrMalformedFrame
			}
			q.Selector = v
			raw = raw[n:]
		case num == fieldQueryTarget && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return DecodedQuery{}, ErrMalformedFrame
			}
			q.Target = v
			raw = raw[n:]
		case num == fieldQueryTimeout && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return DecodedQuery{}, ErrMalformedFrame
			}
			q.TimeoutMs = int64(v)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return DecodedQuery{}, ErrMalformedFrame
			}
			raw = raw[n:]
		}
	}
	return q, nil
}

// EncodeReply serialises one sample reply.
func EncodeReply(s sample.Sample) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldReplyKeyExpr, protowire.BytesType)
	buf = protowire.AppendString(buf, s.KeyExpr)
	buf = protowire.AppendTag(buf, fieldReplyPayload, protowire.BytesType)
	buf = protowire.AppendBytes(buf, s.Payload)
	buf = protowire.AppendTag(buf, fieldReplySourceID, protowire.BytesType)
	buf = protowire.AppendString(buf, s.Source.ID)
	if s.Source.SN != nil {
		buf = protowire.AppendTag(buf, fieldReplySourceSN, protowire.VarintType)
		buf = protowire.AppendVarint(buf, *s.Source.SN)
	}
	return buf
}

// DecodeReply parses a sample reply encoded by EncodeReply.
func DecodeReply(raw []byte) (sample.Sample, error) {
	var s sample.Sample
	var sn uint64
	var haveSN bool
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return sample.Sample{}, ErrMalformedFrame
		}
		raw = raw[n:]
		switch {
		case num == fieldReplyKeyExpr && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return sample.Sample{}, ErrMalformedFrame
			}
			s.KeyExpr = v
			raw = raw[n:]
		case num == fieldReplyPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return sample.Sample{}, ErrMalformedFrame
			}
			s.Payload = append([]byte(nil), v...)
			raw = raw[n:]
		case num == fieldReplySourceID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return sample.Sample{}, ErrMalformedFrame
			}
			s.Source.ID = v
			raw = raw[n:]
		case num == fieldReplySourceSN && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return sample.Sample{}, ErrMalformedFrame
			}
			sn = v
			haveSN = true
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return sample.Sample{}, ErrMalformedFrame
			}
			raw = raw[n:]
		}
	}
	if haveSN {
		s.Source.SN = &sn
	}
	return s, nil
}

// EncodeEnd serialises the end-of-replies sentinel frame.
func EncodeEnd() []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldEnd, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 1)
	return buf
}

// IsEnd reports whether raw is the end-of-replies sentinel frame.
func IsEnd(raw []byte) bool {
	num, typ, n := protowire.ConsumeTag(raw)
	if n < 0 || num != fieldEnd || typ != protowire.VarintType {
		return false
	}
	return true
}
