// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// RawMessage is an encoded CBOR value whose decoding is deferred.
type RawMessage = cbor.RawMessage

var (
	// encMode is Core Deterministic Encoding (RFC 8949 §4.2): equal
	// values encode to equal bytes. Service fingerprints and ledger
	// comparisons depend on it.
	encMode = mustMode(cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloat16,
		NaNConvert:    cbor.NaNConvert7e00,
		InfConvert:    cbor.InfConvertFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode())

	// decMode ignores unknown fields, so peers on a newer schema still
	// interoperate, and decodes untyped maps as map[string]any.
	decMode = mustMode(cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode())
)

func mustMode[M any](mode M, err error) M {
	if err != nil {
		panic("codec: invalid CBOR options: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// NewEncoder returns a deterministic stream encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a stream decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }

// DecodeLimited decodes one value from r into v, reading at most limit
// bytes. CBOR is self-delimiting, so a socket peer needs no other
// framing.
func DecodeLimited(r io.Reader, limit int64, v any) error {
	return NewDecoder(io.LimitReader(r, limit)).Decode(v)
}
