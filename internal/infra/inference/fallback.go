package inference

import (
	"errors"
	"sync/atomic"
)

// DefaultFallbackResponses are used when no custom list is configured.
var DefaultFallbackResponses = []string{
	"Waduh, otak gue lagi ngelag nih. Coba tanya lagi bentar lagi ya!",
	"Sori bro, server AI-nya lagi rame banget. Kasih gue semenit, terus coba lagi.",
	"Hmm, gue lagi gak bisa mikir jernih sekarang. Ulang lagi nanti ya.",
	"Koneksi ke otak gue lagi putus-nyambung nih. Coba kirim ulang pesannya sebentar lagi.",
	"Lagi antre panjang di dapur AI, wkwk. Tunggu bentar terus tanya lagi ya!",
}

// FallbackResponder hands out canned answers in strict rotation.
type FallbackResponder struct {
	responses []string
	counter   atomic.Uint64
}

// NewFallbackResponder creates a responder over a non-empty list.
func NewFallbackResponder(responses []string) (*FallbackResponder, error) {
	if len(responses) == 0 {
		return nil, errors.New("fallback responses cannot be empty")
	}
	return &FallbackResponder{responses: append([]string(nil), responses...)}, nil
}

// Next returns responses[counter mod len] and increments the counter.
func (f *FallbackResponder) Next() string {
	n := f.counter.Add(1) - 1
	return f.responses[n%uint64(len(f.responses))]
}
