package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*AccessInfo
	signupCredits int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(signupCredits int) *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*AccessInfo),
		signupCredits: signupCredits,
	}
}

// GetAccessInfo implements Store
func (s *MemoryStore) GetAccessInfo(ctx context.Context, email string) (*AccessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyInfo(info), nil
}

// EnsureUser implements Store
func (s *MemoryStore) EnsureUser(ctx context.Context, email string) (*AccessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.users[email]
	if !ok {
		info = &AccessInfo{
			Email:   email,
			Credits: s.signupCredits,
		}
		s.users[email] = info
	}
	return copyInfo(info), nil
}

// DecrementCredit implements Store
func (s *MemoryStore) DecrementCredit(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.users[email]
	if !ok {
		return 0, ErrUserNotFound
	}
	if info.Credits <= 0 {
		return 0, ErrInsufficientCredits
	}
	info.Credits--
	return info.Credits, nil
}

// AddCredits implements Store
func (s *MemoryStore) AddCredits(ctx context.Context, email string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.users[email]
	if !ok {
		return 0, ErrUserNotFound
	}
	info.Credits += n
	return info.Credits, nil
}

// ActivateMembership implements Store
func (s *MemoryStore) ActivateMembership(ctx context.Context, email string, plan Plan, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.users[email]
	if !ok {
		return ErrUserNotFound
	}

	info.MembershipExpiresAt = NextExpiry(info.MembershipExpiresAt, plan, now)
	info.MembershipPlan = string(plan)
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error { return nil }

func copyInfo(info *AccessInfo) *AccessInfo {
	out := *info
	if info.MembershipExpiresAt != nil {
		t := *info.MembershipExpiresAt
		out.MembershipExpiresAt = &t
	}
	return &out
}
