package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]*models.User
	// failing simulates a broken store: every call errors.
	failing bool
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*models.User)}
}

var errStoreDown = fmt.Errorf("store unavailable")

func (r *memUserRepo) put(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *user
	r.users[user.ID] = &clone
}

func (r *memUserRepo) EnsureUser(_ context.Context, id int64, username string, freeRequests int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		user = &models.User{
			ID:           id,
			Username:     username,
			Tier:         models.TierFree,
			RequestsLeft: freeRequests,
			ModeKind:     string(models.ModeCategory),
			ModeValue:    models.DefaultCategory,
		}
		r.users[id] = user
	} else if username != "" {
		user.Username = username
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetUser(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) ListUserIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errStoreDown
	}
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memUserRepo) DecrementClamped(_ context.Context, id int64, resource repositories.Resource, n int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return 0, 0, errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return 0, 0, fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	balance := user.RequestsLeft
	if resource == repositories.ResourceTargets {
		balance = user.TargetsLeft
	}
	after := balance - n
	if after < 0 {
		after = 0
	}
	if resource == repositories.ResourceTargets {
		user.TargetsLeft = after
	} else {
		user.RequestsLeft = after
	}
	return balance - after, after, nil
}

func (r *memUserRepo) TopUp(_ context.Context, id int64, requests, targets int, expiration time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.RequestsLeft += requests
	user.TargetsLeft += targets
	user.Tier = models.TierPremium
	if user.PremiumExpiration == nil || expiration.After(*user.PremiumExpiration) {
		exp := expiration
		user.PremiumExpiration = &exp
	}
	return nil
}

func (r *memUserRepo) ApplyReconciliation(_ context.Context, id int64, tier models.UserTier, requests, targets int, expiration *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.Tier = tier
	user.RequestsLeft = requests
	user.TargetsLeft = targets
	user.PremiumExpiration = expiration
	return nil
}

func (r *memUserRepo) SetAwaitingTarget(_ context.Context, id int64, awaiting bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.AwaitingTarget = awaiting
	return nil
}

func (r *memUserRepo) SetMode(_ context.Context, id int64, mode models.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.ModeKind = string(mode.Kind)
	user.ModeValue = mode.Value()
	return nil
}

func (r *memUserRepo) SetLastRequestAt(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.LastRequestAt = at
	return nil
}

func (r *memUserRepo) ResetToFree(_ context.Context, id int64, freeRequests int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errStoreDown
	}
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	user.Tier = models.TierFree
	user.PremiumExpiration = nil
	user.RequestsLeft = freeRequests
	user.TargetsLeft = 0
	user.AwaitingTarget = false
	return nil
}

type memPurchaseRepo struct {
	mu        sync.Mutex
	purchases []*models.PurchaseRecord
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{}
}

func (r *memPurchaseRepo) Create(_ context.Context, purchase *models.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	clone := *purchase
	r.purchases = append(r.purchases, &clone)
	return nil
}

func (r *memPurchaseRepo) ListActive(_ context.Context, userID int64, now time.Time) ([]*models.PurchaseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*models.PurchaseRecord
	for _, p := range r.purchases {
		if p.UserID == userID && p.ActiveAt(now) {
			clone := *p
			active = append(active, &clone)
		}
	}
	return active, nil
}

func (r *memPurchaseRepo) DeleteExpired(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.PurchaseRecord
	var removed int64
	for _, p := range r.purchases {
		if p.UserID == userID && !p.ActiveAt(now) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	r.purchases = kept
	return removed, nil
}

func (r *memPurchaseRepo) DeleteAllForUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.PurchaseRecord
	for _, p := range r.purchases {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	r.purchases = kept
	return nil
}

type memRunLogRepo struct {
	mu   sync.Mutex
	runs []*models.ReconciliationRun
}

func newMemRunLogRepo() *memRunLogRepo {
	return &memRunLogRepo{}
}

func (r *memRunLogRepo) RecordRun(_ context.Context, run *models.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *run
	clone.ID = int64(len(r.runs) + 1)
	r.runs = append(r.runs, &clone)
	return nil
}

func (r *memRunLogRepo) LastRun(_ context.Context, jobName string) (*models.ReconciliationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].JobName == jobName {
			clone := *r.runs[i]
			return &clone, nil
		}
	}
	return nil, nil
}

type fakeDownloader struct {
	data []byte
	err  error
}

func (d *fakeDownloader) Fetch(context.Context, string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.data, nil
}

type fakeSwapper struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   int
}

func (s *fakeSwapper) Process(context.Context, string, models.Mode) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.outputs, nil
}

func (s *fakeSwapper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeStore struct {
	saved []string
	err   error
}

func (s *fakeStore) SaveInput(_ context.Context, userID int64, target bool, _ []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	dir := "original"
	if target {
		dir = "target_images"
	}
	path := fmt.Sprintf("%s/u%d_%d.png", dir, userID, len(s.saved))
	s.saved = append(s.saved, path)
	return path, nil
}

type fakeMessenger struct {
	mu      sync.Mutex
	photos  []string
	texts   []string
	sendErr error
	// onSend runs after each successful photo delivery, with the
	// delivery index, so tests can mutate state between outputs.
	onSend func(int)
}

func (m *fakeMessenger) SendPhoto(_ context.Context, _ int64, assetPath, _ string) error {
	m.mu.Lock()
	if m.sendErr != nil {
		m.mu.Unlock()
		return m.sendErr
	}
	m.photos = append(m.photos, assetPath)
	n := len(m.photos)
	hook := m.onSend
	m.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (m *fakeMessenger) SendText(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}
