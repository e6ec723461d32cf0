package engine

// Seeds is the seed pair that keys every draw. The nonce travels separately.
type Seeds struct {
	Server string `json:"server"` // ASCII; do NOT hex-decode
	Client string `json:"client"`
}

// ServerHash is the public commitment of the server seed.
func (s Seeds) ServerHash() string {
	return HashServerSeed(s.Server)
}
