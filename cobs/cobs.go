// Package cobs implements consistent-overhead byte stuffing: a reversible
// encoding that removes zero bytes from a payload so a single trailing zero
// byte can unambiguously mark a frame boundary on the wire (spec.md §4.3).
//
// The encode/decode style — functions operating on byte buffers and
// returning the count of bytes written — follows the teacher's buffer-
// pointer idiom in protocol/vlq.go, adapted here to the COBS algorithm the
// spec requires (the teacher's own framing is a Klipper-style sync-byte
// scheme, not COBS; spec.md's framing algorithm is what's implemented).
package cobs

// MaxOverheadPer254 is the COBS block length: each run of up to 254 payload
// bytes costs one code byte, so N payload bytes gain at most ceil(N/254)
// code bytes plus the trailing zero delimiter.
const MaxOverheadPer254 = 254

// EncodedLen returns the maximum encoded length (including the trailing
// zero delimiter) for a payload of n bytes.
func EncodedLen(n int) int {
	return n + (n+MaxOverheadPer254-1)/MaxOverheadPer254 + 1
}

// Encode writes the COBS encoding of src into dst, including the trailing
// zero delimiter, and returns the number of bytes written. dst must be at
// least EncodedLen(len(src)) bytes.
func Encode(dst, src []byte) int {
	if len(src) == 0 {
		dst[0] = 0x00 // an empty payload is just the frame delimiter
		return 1
	}
	out := 0
	codeIdx := 0
	dst[codeIdx] = 0x01 // placeholder, patched below
	code := byte(1)
	out++

	for i, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = out
			out++
			code = 1
			continue
		}
		dst[out] = b
		out++
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			if i == len(src)-1 {
				// A full block ending the payload needs no further code byte.
				dst[out] = 0x00
				return out + 1
			}
			codeIdx = out
			out++
			code = 1
		}
	}

	dst[codeIdx] = code
	dst[out] = 0x00 // frame delimiter
	out++
	return out
}

// Decode decodes a COBS-encoded frame (without its trailing zero delimiter;
// callers strip that before calling Decode) into dst and returns the number
// of bytes written. Decode tolerates malformed input by stopping at the
// first inconsistency it finds — the caller's CRC check is the authoritative
// validator (spec.md §4.3 "Decoder tolerates malformed input by stopping at
// the first delimiter").
func Decode(dst, src []byte) int {
	out := 0
	i := 0
	for i < len(src) {
		code := int(src[i])
		if code == 0 {
			// A zero code byte is invalid mid-stream; stop here.
			break
		}
		i++
		blockLen := code - 1
		if i+blockLen > len(src) {
			blockLen = len(src) - i
		}
		copy(dst[out:], src[i:i+blockLen])
		out += blockLen
		i += blockLen
		if code != 0xFF && i < len(src) {
			dst[out] = 0x00
			out++
		}
	}
	return out
}
