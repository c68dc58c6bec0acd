package backtracecache

import (
	"github.com/getsentry/memtrace/internal/bytebuf"
	"github.com/getsentry/memtrace/internal/errorutil"
	"github.com/getsentry/memtrace/internal/location"
)

const (
	tagHit  = 0
	tagMiss = 1
)

// WriteCodes serializes codes as spec section 4.4's wire layout: a
// u16 count followed by one u16 codeword (bucket<<1|tag) per code,
// each followed by its tag-specific payload.
func WriteCodes(buf *bytebuf.Buffer, codes []Code) error {
	if len(codes) > 0xFFFF {
		return errorutil.Errorf("too many backtrace codes: %d", len(codes))
	}
	if err := buf.PutU16(uint16(len(codes))); err != nil {
		return err
	}
	for _, code := range codes {
		tag := uint16(tagHit)
		if !code.IsHit {
			tag = tagMiss
		}
		codeword := uint16(code.Bucket)<<1 | tag
		if err := buf.PutU16(codeword); err != nil {
			return err
		}
		if code.IsHit {
			if err := buf.PutU8(code.Run); err != nil {
				return err
			}
		} else {
			if err := buf.PutU64(uint64(code.Literal)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadCodes parses the layout WriteCodes produces.
func ReadCodes(buf *bytebuf.Buffer) ([]Code, error) {
	n, err := buf.GetU16()
	if err != nil {
		return nil, err
	}
	codes := make([]Code, 0, n)
	for i := 0; i < int(n); i++ {
		codeword, err := buf.GetU16()
		if err != nil {
			return nil, err
		}
		bucket := uint32(codeword >> 1)
		tag := codeword & 1
		switch tag {
		case tagHit:
			run, err := buf.GetU8()
			if err != nil {
				return nil, err
			}
			codes = append(codes, Code{Bucket: bucket, IsHit: true, Run: run})
		case tagMiss:
			lit, err := buf.GetU64()
			if err != nil {
				return nil, err
			}
			codes = append(codes, Code{Bucket: bucket, IsHit: false, Literal: location.ID(lit)})
		default:
			return nil, errorutil.Errorf("unreachable backtrace code tag %d", tag)
		}
	}
	return codes, nil
}
