package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	planEncoder *zstd.Encoder
	planDecoder *zstd.Decoder
)

func init() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	planEncoder = enc
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	planDecoder = dec
}

// compressPlan encodes a rendered plan for the plan_zstd column.
func compressPlan(plan string) []byte {
	return planEncoder.EncodeAll([]byte(plan), nil)
}

func decompressPlan(blob []byte) (string, error) {
	out, err := planDecoder.DecodeAll(blob, nil)
	if err != nil {
		return "", fmt.Errorf("decompress plan: %w", err)
	}
	return string(out), nil
}
