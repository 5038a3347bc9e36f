package natsadapter

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// Position frames use the protobuf wire format so device clients can share a
// .proto definition:
//
//	message Position {
//	  double lat        = 1;
//	  double lng        = 2;
//	  int64  unix_nanos = 3;
//	  double accuracy_m = 4;
//	}
const (
	fieldLat       protowire.Number = 1
	fieldLng       protowire.Number = 2
	fieldUnixNanos protowire.Number = 3
	fieldAccuracy  protowire.Number = 4
)

var errMalformedFrame = errors.New("malformed position frame")

// EncodePosition serialises a position as a protobuf message.
func EncodePosition(pos domain.Position) []byte {
	b := make([]byte, 0, 40)
	b = protowire.AppendTag(b, fieldLat, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(pos.Location.Lat))
	b = protowire.AppendTag(b, fieldLng, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(pos.Location.Lon))
	if !pos.Time.IsZero() {
		b = protowire.AppendTag(b, fieldUnixNanos, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(pos.Time.UnixNano()))
	}
	if pos.AccuracyM != 0 {
		b = protowire.AppendTag(b, fieldAccuracy, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(pos.AccuracyM))
	}
	return b
}

// DecodePosition parses a frame produced by EncodePosition. Unknown fields
// are skipped.
func DecodePosition(b []byte) (domain.Position, error) {
	var pos domain.Position
	var haveLat, haveLng bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return pos, fmt.Errorf("%w: %v", errMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldLat && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return pos, fmt.Errorf("%w: lat: %v", errMalformedFrame, protowire.ParseError(n))
			}
			pos.Location.Lat = math.Float64frombits(v)
			haveLat = true
			b = b[n:]
		case num == fieldLng && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return pos, fmt.Errorf("%w: lng: %v", errMalformedFrame, protowire.ParseError(n))
			}
			pos.Location.Lon = math.Float64frombits(v)
			haveLng = true
			b = b[n:]
		case num == fieldUnixNanos && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return pos, fmt.Errorf("%w: time: %v", errMalformedFrame, protowire.ParseError(n))
			}
			pos.Time = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		case num == fieldAccuracy && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return pos, fmt.Errorf("%w: accuracy: %v", errMalformedFrame, protowire.ParseError(n))
			}
			pos.AccuracyM = math.Float64frombits(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return pos, fmt.Errorf("%w: field %d: %v", errMalformedFrame, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !haveLat || !haveLng {
		return pos, fmt.Errorf("%w: missing coordinate", errMalformedFrame)
	}
	if !pos.Location.Valid() {
		return pos, fmt.Errorf("%w: coordinate %s out of range", errMalformedFrame, pos.Location)
	}
	return pos, nil
}
