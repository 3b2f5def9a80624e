package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"casino-wager-system/models"
)

// OutcomeSource produces one bounded random outcome per contest type.
// Stateless from the caller's perspective; injectable so tests can script
// rolls.
type OutcomeSource interface {
	Next(contestType models.ContestType) (int, error)
}

// RandOutcomeSource is the production source, backed by a locked
// math/rand generator.
type RandOutcomeSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandOutcomeSource() *RandOutcomeSource {
	return &RandOutcomeSource{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *RandOutcomeSource) Next(contestType models.ContestType) (int, error) {
	rules, ok := contestType.Rules()
	if !ok {
		return 0, fmt.Errorf("unknown contest type %q", contestType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	span := rules.OutcomeMax - rules.OutcomeMin + 1
	return rules.OutcomeMin + s.rng.Intn(span), nil
}
