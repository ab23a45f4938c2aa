package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Source yields floats in [0, 1). Views draw all of their randomness from one.
type Source interface {
	Float64() float64
}

// ByteGenerator streams HMAC-SHA256 bytes for a seed. Each round hashes
// "label:nonce:round" keyed by the seed and yields 32 bytes.
type ByteGenerator struct {
	seed         string
	label        string
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewByteGenerator creates a generator positioned at cursor (in bytes).
func NewByteGenerator(seed, label string, nonce uint64, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		seed:         seed,
		label:        label,
		nonce:        nonce,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}

	bg.generateRound()

	return bg
}

// Next returns the next byte from the stream.
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= 32 {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat consumes exactly 4 bytes.
func (bg *ByteGenerator) NextFloat() float64 {
	b0 := bg.Next()
	b1 := bg.Next()
	b2 := bg.Next()
	b3 := bg.Next()

	return bytesToFloat([4]byte{b0, b1, b2, b3})
}

// Float64 implements Source.
func (bg *ByteGenerator) Float64() float64 {
	return bg.NextFloat()
}

func (bg *ByteGenerator) generateRound() {
	h := hmac.New(sha256.New, []byte(bg.seed))
	message := fmt.Sprintf("%s:%d:%d", bg.label, bg.nonce, bg.currentRound)
	h.Write([]byte(message))
	copy(bg.buffer[:], h.Sum(nil))
}

// bytesToFloat converts 4 bytes to a float as sum(b[i] / 256^(i+1)).
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		divider := math.Pow(256, float64(i+1))
		result += float64(b) / divider
	}
	return result
}

// NewStream returns a Source for one view. Two streams with the same seed and
// label produce the same sequence.
func NewStream(seed, label string) Source {
	return NewByteGenerator(seed, label, 0, 0)
}

// NewSeed returns 16 random bytes hex encoded.
func NewSeed() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("engine: read random seed: %v", err))
	}
	return hex.EncodeToString(b[:])
}

// Pick maps the next float to an index in [0, n). n must be positive.
func Pick(src Source, n int) int {
	index := int(math.Floor(src.Float64() * float64(n)))
	if index >= n {
		index = n - 1
	}
	return index
}

// Between maps the next float to [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return src.Float64()*(hi-lo) + lo
}

// HashSeed returns a short SHA-256 fingerprint of seed, safe to log.
func HashSeed(seed string) string {
	if seed == "" {
		return "empty"
	}
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])[:16]
}
