package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

// DigestSize is the number of bytes produced per HMAC round.
const DigestSize = sha256.Size

// RoundDigest computes HMAC-SHA256(serverSeed, "clientSeed:nonce:round").
// The server seed is used as raw ASCII key material.
func RoundDigest(serverSeed, clientSeed string, nonce, round uint64) [DigestSize]byte {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write(roundMessage(clientSeed, nonce, round))

	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func roundMessage(clientSeed string, nonce, round uint64) []byte {
	msg := make([]byte, 0, len(clientSeed)+42)
	msg = append(msg, clientSeed...)
	msg = append(msg, ':')
	msg = strconv.AppendUint(msg, nonce, 10)
	msg = append(msg, ':')
	msg = strconv.AppendUint(msg, round, 10)
	return msg
}

// ByteAt returns the byte at an absolute position of the keyed stream
// without replaying any earlier position.
func ByteAt(serverSeed, clientSeed string, nonce, position uint64) byte {
	digest := RoundDigest(serverSeed, clientSeed, nonce, position/DigestSize)
	return digest[position%DigestSize]
}

// ByteGenerator walks the keyed stream from a cursor. It caches the digest
// of the round it is currently reading; the cache has no observable effect.
type ByteGenerator struct {
	serverSeed   string
	clientSeed   string
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [DigestSize]byte
}

// NewByteGenerator creates a new byte generator positioned at cursor.
func NewByteGenerator(serverSeed, clientSeed string, nonce uint64, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		serverSeed: serverSeed,
		clientSeed: clientSeed,
		nonce:      nonce,
	}
	bg.Reset(cursor)
	return bg
}

// Reset moves the generator to an absolute cursor position.
func (bg *ByteGenerator) Reset(cursor uint64) {
	bg.currentRound = cursor / DigestSize
	bg.currentPos = int(cursor % DigestSize)
	bg.generateRound()
}

// Position returns the absolute position of the next byte.
func (bg *ByteGenerator) Position() uint64 {
	return bg.currentRound*DigestSize + uint64(bg.currentPos)
}

// Next returns the next byte from the generator
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= DigestSize {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat generates the next float using exactly 4 bytes
func (bg *ByteGenerator) NextFloat() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

func (bg *ByteGenerator) generateRound() {
	bg.buffer = RoundDigest(bg.serverSeed, bg.clientSeed, bg.nonce, bg.currentRound)
}

// bytesToFloat converts exactly 4 bytes to a float in [0, 1) with 2^-32 resolution.
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// Floats generates the specified number of floats starting from the given cursor
func Floats(serverSeed, clientSeed string, nonce uint64, cursor uint64, count int) []float64 {
	return FloatsInto(nil, serverSeed, clientSeed, nonce, cursor, count)
}

// FloatsInto fills the provided slice with floats, avoiding allocation
func FloatsInto(dst []float64, serverSeed, clientSeed string, nonce uint64, cursor uint64, count int) []float64 {
	if cap(dst) < count {
		dst = make([]float64, count)
	}
	dst = dst[:count]

	bg := NewByteGenerator(serverSeed, clientSeed, nonce, cursor)
	for i := range dst {
		dst[i] = bg.NextFloat()
	}
	return dst
}

// HashServerSeed returns the hex SHA-256 commitment of a server seed.
func HashServerSeed(serverSeed string) string {
	if serverSeed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}
