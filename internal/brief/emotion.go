package brief

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Emotions are the target emotions a brief can be written for.
var Emotions = []string{
	"Curiosity", "Surprise", "Inspiration", "Amusement", "Awe",
	"Joy", "Hope", "Pride", "Gratitude", "Excitement",
}

// EmotionPolicy picks the target emotion when the caller does not name one.
type EmotionPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEmotionPolicy creates a policy drawing from src. A nil src seeds from
// the clock.
func NewEmotionPolicy(src rand.Source) *EmotionPolicy {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>32|1)
	}
	return &EmotionPolicy{rng: rand.New(src)}
}

// Pick returns the requested emotion, normalized to the known label when it
// matches one, or a random known emotion when requested is blank.
func (p *EmotionPolicy) Pick(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		for _, e := range Emotions {
			if strings.EqualFold(e, requested) {
				return e
			}
		}
		return requested
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return Emotions[p.rng.IntN(len(Emotions))]
}
