package core

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/log"
	"github.com/vovakirdan/strangerchat/internal/store"
	"github.com/vovakirdan/strangerchat/internal/utils"
)

// Storage keys.
const (
	KeyUserID     = "userId"
	KeyInterests  = "interests"
	KeyAgreement  = "agreedToDisclaimer"
	KeyPrivileged = "admin"
)

// Identity is the local anonymous user.
type Identity struct {
	ID         string
	Interests  []string
	Privileged bool
}

func (i Identity) clone() Identity {
	i.Interests = slices.Clone(i.Interests)
	return i
}

// IdentityStore keeps the identity, interests and agreement flag in a store.KV.
// When the store fails it degrades to memory for the rest of the process.
type IdentityStore struct {
	mu        sync.Mutex
	kv        store.KV
	degraded  bool
	newID     func() string
	identity  Identity
	agreement bool
	log       *zerolog.Logger
}

// NewIdentityStore wraps kv. A nil kv means memory only.
func NewIdentityStore(kv store.KV, logger *zerolog.Logger) *IdentityStore {
	s := &IdentityStore{
		kv:    kv,
		newID: func() string { return utils.NewID(utils.UserIDLength) },
		log:   log.OrNop(logger),
	}
	if kv == nil {
		s.kv = store.NewMemory()
		s.degraded = true
	}
	return s
}

// Load reads the identity, creating and persisting an id when none exists.
func (s *IdentityStore) Load(ctx context.Context) Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.get(ctx, KeyUserID)
	if !ok || !utils.IsValidID(id) {
		if ok {
			s.log.Warn().Str("stored", id).Msg("replacing unreadable user id")
		}
		id = s.newID()
		s.set(ctx, KeyUserID, id)
		s.log.Info().Str("user_id", id).Msg("generated new user id")
	}

	var interests []string
	if raw, ok := s.get(ctx, KeyInterests); ok {
		if err := json.Unmarshal([]byte(raw), &interests); err != nil {
			s.log.Warn().Err(err).Msg("ignoring unreadable saved interests")
			interests = nil
		}
	}
	interests = normalizeInterests(interests)
	if len(interests) == 0 {
		interests = []string{DefaultInterest}
	}

	admin, _ := s.get(ctx, KeyPrivileged)
	agreed, _ := s.get(ctx, KeyAgreement)

	s.identity = Identity{
		ID:         id,
		Interests:  interests,
		Privileged: isTruthy(admin),
	}
	s.agreement = agreed == "true"
	return s.identity.clone()
}

// Identity returns the last loaded or updated identity.
func (s *IdentityStore) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.clone()
}

// SetInterests replaces the interest set and persists it immediately.
func (s *IdentityStore) SetInterests(ctx context.Context, interests []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setInterests(ctx, interests)
}

// ToggleInterest adds name when absent and removes it when present.
func (s *IdentityStore) ToggleInterest(ctx context.Context, name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return slices.Clone(s.identity.Interests)
	}
	current := slices.Clone(s.identity.Interests)
	if idx := slices.Index(current, name); idx >= 0 {
		current = slices.Delete(current, idx, idx+1)
	} else {
		current = append(current, name)
	}
	return s.setInterests(ctx, current)
}

func (s *IdentityStore) setInterests(ctx context.Context, interests []string) []string {
	interests = normalizeInterests(interests)
	raw, err := json.Marshal(interests)
	if err != nil {
		s.log.Error().Err(err).Msg("encode interests")
	} else {
		s.set(ctx, KeyInterests, string(raw))
	}
	s.identity.Interests = interests
	return slices.Clone(interests)
}

// SetAgreement records whether the disclaimer was accepted.
func (s *IdentityStore) SetAgreement(ctx context.Context, agreed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agreed {
		s.set(ctx, KeyAgreement, "true")
	} else {
		s.remove(ctx, KeyAgreement)
	}
	s.agreement = agreed
}

// Agreement reports whether the disclaimer was accepted.
func (s *IdentityStore) Agreement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agreement
}

// Degraded reports whether the store fell back to memory.
func (s *IdentityStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *IdentityStore) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.degrade(err)
		v, ok, _ = s.kv.Get(ctx, key)
	}
	return v, ok
}

func (s *IdentityStore) set(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.degrade(err)
		_ = s.kv.Set(ctx, key, value)
	}
}

func (s *IdentityStore) remove(ctx context.Context, key string) {
	if err := s.kv.Remove(ctx, key); err != nil {
		s.degrade(err)
		_ = s.kv.Remove(ctx, key)
	}
}

// degrade swaps the failing store for memory seeded with what is already known.
func (s *IdentityStore) degrade(err error) {
	if s.degraded {
		return
	}
	s.log.Warn().Err(err).Msg("storage unavailable, keeping identity in memory only")
	s.degraded = true

	mem := store.NewMemory()
	ctx := context.Background()
	if s.identity.ID != "" {
		_ = mem.Set(ctx, KeyUserID, s.identity.ID)
		if raw, err := json.Marshal(s.identity.Interests); err == nil {
			_ = mem.Set(ctx, KeyInterests, string(raw))
		}
		if s.identity.Privileged {
			_ = mem.Set(ctx, KeyPrivileged, "true")
		}
	}
	if s.agreement {
		_ = mem.Set(ctx, KeyAgreement, "true")
	}
	s.kv = mem
}

func normalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" || slices.Contains(out, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "no":
		return false
	default:
		return true
	}
}
