package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"lexora.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used for
// local development and tests; production deployments use the Postgres
// store.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	byEmail  map[string]string // lower(email) -> account id
	grants   map[string]*AccessGrant
	byPair   map[string]string // subjectID + "\x00" + firmID -> grant id
}

// NewInMemory creates empty stores.
func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		grants:   make(map[string]*AccessGrant),
		byPair:   make(map[string]string),
	}
}

func (s *InMemory) Accounts(context.Context) AccountStore { return (*memAccounts)(s) }
func (s *InMemory) Grants(context.Context) GrantStore     { return (*memGrants)(s) }

func pairKey(subjectID, firmID string) string { return subjectID + "\x00" + firmID }

type memAccounts InMemory

func (s *memAccounts) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, ok := s.byEmail[key]; ok {
		return ErrAlreadyExists
	}
	if a.Kind == KindFirmAdmin && a.FirmName != "" {
		for _, other := range s.accounts {
			if other.Kind == KindFirmAdmin && other.FirmName == a.FirmName {
				return ErrAlreadyExists
			}
		}
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[key] = a.ID
	return nil
}

func (s *memAccounts) Find(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *memAccounts) FindFirmByName(ctx context.Context, name string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Kind == KindFirmAdmin && a.FirmName == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memAccounts) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memAccounts) ResetFirm(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.FirmName = ""
	a.Status = StatusPending
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memAccounts) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(a.Email))
	delete(s.accounts, id)
	return nil
}

type memGrants InMemory

func (s *memGrants) Create(ctx context.Context, g *AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(g.SubjectAccountID, g.FirmAccountID)
	if _, ok := s.byPair[key]; ok {
		return ErrAlreadyExists
	}
	if g.ID == "" {
		g.ID = ids.New()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	cp := *g
	s.grants[g.ID] = &cp
	s.byPair[key] = g.ID
	return nil
}

func (s *memGrants) FindBySubject(ctx context.Context, subjectID, firmID string) (*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey(subjectID, firmID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.grants[id]
	return &cp, nil
}

func (s *memGrants) ListByFirm(ctx context.Context, firmID string) ([]*AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AccessGrant
	for _, g := range s.grants {
		if g.FirmAccountID == firmID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memGrants) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return ErrNotFound
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memGrants) UpdatePermissions(ctx context.Context, id string, perms PermissionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return ErrNotFound
	}
	g.Permissions = perms
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memGrants) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byPair, pairKey(g.SubjectAccountID, g.FirmAccountID))
	delete(s.grants, id)
	return nil
}
