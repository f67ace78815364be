package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

// memoryStore is an in-memory stand-in for the postgres repositories.
// LockByID holds a per-license mutex until the surrounding transaction ends and
// failed transactions replay an undo journal.
type memoryStore struct {
	mu                  sync.Mutex
	nextID              int64
	licenses            map[int64]domain.License
	activations         map[int64]domain.DomainActivation
	products            map[int64]domain.Product
	logs                []domain.VerificationLogEntry
	rowLocks            map[int64]*sync.Mutex
	findCalls           int
	recordActivationErr error
	appendErr           error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		licenses:    map[int64]domain.License{},
		activations: map[int64]domain.DomainActivation{},
		products:    map[int64]domain.Product{},
		rowLocks:    map[int64]*sync.Mutex{},
	}
}

func (s *memoryStore) addLicense(l domain.License) domain.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l.ID = s.nextID
	s.licenses[l.ID] = l
	return l
}

func (s *memoryStore) addProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memoryStore) license(id int64) domain.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licenses[id]
}

func (s *memoryStore) activeDomains(licenseID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.activations {
		if a.LicenseID == licenseID && a.Active {
			count++
		}
	}
	return count
}

func (s *memoryStore) txFunc() LicenseTxFunc {
	return func(ctx context.Context, fn func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error) error {
		scope := &txScope{}
		err := fn(&licenseRepoStub{store: s, scope: scope}, &activationRepoStub{store: s, scope: scope})
		if err != nil {
			s.mu.Lock()
			for i := len(scope.undo) - 1; i >= 0; i-- {
				scope.undo[i]()
			}
			s.mu.Unlock()
		}
		for _, held := range scope.held {
			held.Unlock()
		}
		return err
	}
}

type txScope struct {
	held []*sync.Mutex
	undo []func()
}

func (sc *txScope) record(fn func()) {
	if sc != nil {
		sc.undo = append(sc.undo, fn)
	}
}

type licenseRepoStub struct {
	store *memoryStore
	scope *txScope
}

func (r *licenseRepoStub) GetByID(_ context.Context, id int64) (*domain.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.licenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *licenseRepoStub) GetByLicenseKey(_ context.Context, key string) (*domain.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.licenses {
		if l.LicenseKey == key {
			found := l
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *licenseRepoStub) FindByCode(_ context.Context, code string, productID *int64) (*domain.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.findCalls++
	for _, l := range r.store.licenses {
		if l.PurchaseCode != code && l.LicenseKey != code {
			continue
		}
		if productID != nil && l.ProductID != *productID {
			continue
		}
		found := l
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (r *licenseRepoStub) LockByID(ctx context.Context, id int64) (*domain.License, error) {
	r.store.mu.Lock()
	row, ok := r.store.rowLocks[id]
	if !ok {
		row = &sync.Mutex{}
		r.store.rowLocks[id] = row
	}
	r.store.mu.Unlock()

	row.Lock()
	if r.scope != nil {
		r.scope.held = append(r.scope.held, row)
	} else {
		defer row.Unlock()
	}
	return r.GetByID(ctx, id)
}

func (r *licenseRepoStub) Create(_ context.Context, license domain.License) (*domain.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.licenses {
		if existing.PurchaseCode != "" && existing.PurchaseCode == license.PurchaseCode {
			return nil, repository.ErrConflict
		}
	}
	r.store.nextID++
	license.ID = r.store.nextID
	r.store.licenses[license.ID] = license
	id := license.ID
	r.scope.record(func() { delete(r.store.licenses, id) })
	return &license, nil
}

func (r *licenseRepoStub) RecordActivation(_ context.Context, id int64, at time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.recordActivationErr != nil {
		return 0, r.store.recordActivationErr
	}
	previous, ok := r.store.licenses[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	updated := previous
	updated.ActivationCount++
	updated.LastActivatedAt = &at
	r.store.licenses[id] = updated
	r.scope.record(func() { r.store.licenses[id] = previous })
	return updated.ActivationCount, nil
}

func (r *licenseRepoStub) UpdateStatus(_ context.Context, id int64, status domain.LicenseStatus, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	previous, ok := r.store.licenses[id]
	if !ok {
		return repository.ErrNotFound
	}
	updated := previous
	updated.Status = status
	updated.UpdatedAt = at
	r.store.licenses[id] = updated
	r.scope.record(func() { r.store.licenses[id] = previous })
	return nil
}

type activationRepoStub struct {
	store *memoryStore
	scope *txScope
}

func (r *activationRepoStub) Get(_ context.Context, licenseID int64, name string) (*domain.DomainActivation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.activations {
		if a.LicenseID == licenseID && a.Domain == name {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *activationRepoStub) CountActive(_ context.Context, licenseID int64) (int, error) {
	return r.store.activeDomains(licenseID), nil
}

func (r *activationRepoStub) ListByLicense(_ context.Context, licenseID int64, activeOnly bool) ([]domain.DomainActivation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.DomainActivation
	for _, a := range r.store.activations {
		if a.LicenseID != licenseID || (activeOnly && !a.Active) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *activationRepoStub) Create(_ context.Context, activation domain.DomainActivation) (*domain.DomainActivation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.activations {
		if a.LicenseID == activation.LicenseID && a.Domain == activation.Domain {
			return nil, repository.ErrConflict
		}
	}
	r.store.nextID++
	activation.ID = r.store.nextID
	r.store.activations[activation.ID] = activation
	id := activation.ID
	r.scope.record(func() { delete(r.store.activations, id) })
	return &activation, nil
}

func (r *activationRepoStub) Reactivate(_ context.Context, id int64, at time.Time, activationContext map[string]any) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	previous, ok := r.store.activations[id]
	if !ok {
		return repository.ErrNotFound
	}
	updated := previous
	updated.Active = true
	updated.ActivatedAt = at
	updated.UpdatedAt = at
	updated.Context = activationContext
	r.store.activations[id] = updated
	r.scope.record(func() { r.store.activations[id] = previous })
	return nil
}

func (r *activationRepoStub) Deactivate(_ context.Context, licenseID int64, name string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, a := range r.store.activations {
		if a.LicenseID != licenseID || a.Domain != name || !a.Active {
			continue
		}
		previous := a
		a.Active = false
		a.UpdatedAt = at
		r.store.activations[id] = a
		r.scope.record(func() { r.store.activations[id] = previous })
		return true, nil
	}
	return false, nil
}

func (r *activationRepoStub) DeactivateAll(_ context.Context, licenseID int64, at time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for id, a := range r.store.activations {
		if a.LicenseID != licenseID || !a.Active {
			continue
		}
		previous := a
		a.Active = false
		a.UpdatedAt = at
		r.store.activations[id] = a
		r.scope.record(func() { r.store.activations[id] = previous })
		count++
	}
	return count, nil
}

type productRepoStub struct {
	store *memoryStore
}

func (r *productRepoStub) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type logRepoStub struct {
	store *memoryStore
}

func (r *logRepoStub) Append(_ context.Context, entry domain.VerificationLogEntry) (*domain.VerificationLogEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.appendErr != nil {
		return nil, r.store.appendErr
	}
	r.store.nextID++
	entry.ID = r.store.nextID
	r.store.logs = append(r.store.logs, entry)
	return &entry, nil
}

func (r *logRepoStub) ListSince(_ context.Context, since time.Time) ([]domain.VerificationLogEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.VerificationLogEntry
	for _, entry := range r.store.logs {
		if !entry.CreatedAt.Before(since) {
			out = append(out, entry)
		}
	}
	return out, nil
}

type sha256Hasher struct{}

func (sha256Hasher) Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

var stubHostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

type stubHostnames struct{}

func (stubHostnames) ValidHostname(host string) bool {
	return len(host) <= 253 && stubHostnamePattern.MatchString(host)
}

type sequentialKeys struct {
	mu   sync.Mutex
	next int
}

func (k *sequentialKeys) Generate() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.next++
	return fmt.Sprintf("LK%014d", k.next), nil
}

type marketplaceStub struct {
	mu    sync.Mutex
	sale  *domain.MarketplaceSale
	err   error
	block bool
	calls int
}

func (m *marketplaceStub) VerifyPurchaseCode(ctx context.Context, _ string) (*domain.MarketplaceSale, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", port.ErrMarketplaceTimeout, ctx.Err())
	}
	return m.sale, m.err
}

type cacheStub struct {
	mu          sync.Mutex
	entries     map[string]domain.License
	invalidated []string
	getErr      error
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string]domain.License{}}
}

func (c *cacheStub) GetLicense(_ context.Context, codeHash string) (*domain.License, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	l, ok := c.entries[codeHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (c *cacheStub) SetLicense(_ context.Context, codeHash string, license domain.License, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[codeHash] = license
	return nil
}

func (c *cacheStub) Invalidate(_ context.Context, codeHashes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range codeHashes {
		delete(c.entries, h)
		c.invalidated = append(c.invalidated, h)
	}
	return nil
}

type eventRecorder struct {
	mu           sync.Mutex
	materialized []domain.LicenseMaterializedEvent
	activated    []domain.DomainActivatedEvent
	deactivated  []domain.DomainDeactivatedEvent
	statuses     []domain.LicenseStatusChangedEvent
	failures     []domain.VerificationFailedEvent
	err          error
}

func (e *eventRecorder) PublishLicenseMaterialized(_ context.Context, event domain.LicenseMaterializedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.materialized = append(e.materialized, event)
	return e.err
}

func (e *eventRecorder) PublishDomainActivated(_ context.Context, event domain.DomainActivatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activated = append(e.activated, event)
	return e.err
}

func (e *eventRecorder) PublishDomainDeactivated(_ context.Context, event domain.DomainDeactivatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deactivated = append(e.deactivated, event)
	return e.err
}

func (e *eventRecorder) PublishLicenseStatusChanged(_ context.Context, event domain.LicenseStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, event)
	return e.err
}

func (e *eventRecorder) PublishVerificationFailed(_ context.Context, event domain.VerificationFailedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, event)
	return e.err
}

type mirrorStub struct {
	entries []domain.VerificationLogEntry
	err     error
}

func (m *mirrorStub) MirrorFailure(_ context.Context, entry domain.VerificationLogEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

type counterStub struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (c *counterStub) Increment(_ context.Context, identifier string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[identifier]++
	return c.counts[identifier], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func int64Ptr(v int64) *int64 {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
