package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory repository fakes backed by a shared store. The fake transaction
// manager serializes transactions with a mutex and restores a snapshot on
// error, so rollback semantics match the real Postgres-backed stack closely
// enough to exercise the transition logic.

type memStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]model.User
	msas       map[uuid.UUID]model.Contract
	sows       map[uuid.UUID]model.SOWContract
	engineers  []model.EngagedEngineer
	crs        map[uuid.UUID]model.ChangeRequest
	events     []model.BillingEvent
	appendices []model.ContractAppendix
	history    []model.HistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]model.User),
		msas:  make(map[uuid.UUID]model.Contract),
		sows:  make(map[uuid.UUID]model.SOWContract),
		crs:   make(map[uuid.UUID]model.ChangeRequest),
	}
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.msas {
		snap.msas[k] = v
	}
	for k, v := range s.sows {
		snap.sows[k] = v
	}
	for k, v := range s.crs {
		snap.crs[k] = v
	}
	snap.engineers = append([]model.EngagedEngineer(nil), s.engineers...)
	snap.events = append([]model.BillingEvent(nil), s.events...)
	snap.appendices = append([]model.ContractAppendix(nil), s.appendices...)
	snap.history = append([]model.HistoryEntry(nil), s.history...)
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.users = snap.users
	s.msas = snap.msas
	s.sows = snap.sows
	s.crs = snap.crs
	s.engineers = snap.engineers
	s.events = snap.events
	s.appendices = snap.appendices
	s.history = snap.history
}

type fakeTxKey struct{}

func inFakeTx(ctx context.Context) bool {
	_, ok := ctx.Value(fakeTxKey{}).(bool)
	return ok
}

type fakeTxManager struct {
	store *memStore
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- change request repo ---

type fakeChangeRequestRepo struct {
	store *memStore
}

func (r *fakeChangeRequestRepo) Create(ctx context.Context, cr *model.ChangeRequest) error {
	cr.ID = uuid.New()
	cr.CreatedAt = time.Now()
	cr.UpdatedAt = cr.CreatedAt
	r.store.crs[cr.ID] = *cr
	return nil
}

func (r *fakeChangeRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	cr, ok := r.store.crs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &cr, nil
}

func (r *fakeChangeRequestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	if !inFakeTx(ctx) {
		return nil, model.ErrLedgerWriteConflict
	}
	return r.GetByID(ctx, id)
}

func (r *fakeChangeRequestRepo) GetByCode(ctx context.Context, code string) (*model.ChangeRequest, error) {
	for _, cr := range r.store.crs {
		if cr.Code == code {
			out := cr
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *fakeChangeRequestRepo) Update(ctx context.Context, cr *model.ChangeRequest) error {
	if _, ok := r.store.crs[cr.ID]; !ok {
		return model.ErrNotFound
	}
	cr.UpdatedAt = time.Now()
	r.store.crs[cr.ID] = *cr
	return nil
}

func (r *fakeChangeRequestRepo) List(ctx context.Context, filter repository.ChangeRequestFilter) ([]model.ChangeRequest, int64, error) {
	var out []model.ChangeRequest
	for _, cr := range r.store.crs {
		if filter.Status != "" && cr.Status != filter.Status {
			continue
		}
		if filter.ContractKind != "" && cr.ContractKind != filter.ContractKind {
			continue
		}
		if filter.SOWContractID != nil && (cr.SOWContractID == nil || *cr.SOWContractID != *filter.SOWContractID) {
			continue
		}
		if filter.CreatedBy != nil && cr.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeChangeRequestRepo) NextCode(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("CR-%d-", year)
	var count int
	for _, cr := range r.store.crs {
		if len(cr.Code) >= len(prefix) && cr.Code[:len(prefix)] == prefix {
			count++
		}
	}
	return fmt.Sprintf("%s%02d", prefix, count+1), nil
}

// --- billing event repo ---

type fakeBillingEventRepo struct {
	store *memStore
}

func (r *fakeBillingEventRepo) Append(ctx context.Context, event *model.BillingEvent) error {
	if !inFakeTx(ctx) {
		return model.ErrLedgerWriteConflict
	}
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	r.store.events = append(r.store.events, *event)
	return nil
}

func (r *fakeBillingEventRepo) SumForChangeRequest(ctx context.Context, crID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.store.events {
		if e.ChangeRequestID == crID {
			sum = sum.Add(e.DeltaAmount)
		}
	}
	return sum, nil
}

func (r *fakeBillingEventRepo) ListForChangeRequest(ctx context.Context, crID uuid.UUID) ([]model.BillingEvent, error) {
	var out []model.BillingEvent
	for _, e := range r.store.events {
		if e.ChangeRequestID == crID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeBillingEventRepo) MonthlyTotalsForContract(ctx context.Context, sowContractID uuid.UUID) ([]repository.MonthlyTotal, error) {
	byMonth := make(map[model.BillingMonth]decimal.Decimal)
	for _, e := range r.store.events {
		cr, ok := r.store.crs[e.ChangeRequestID]
		if !ok || cr.SOWContractID == nil || *cr.SOWContractID != sowContractID {
			continue
		}
		if cr.Status != model.CRStatusApproved && cr.Status != model.CRStatusActive {
			continue
		}
		byMonth[e.BillingMonth] = byMonth[e.BillingMonth].Add(e.DeltaAmount)
	}
	var out []repository.MonthlyTotal
	for month, total := range byMonth {
		out = append(out, repository.MonthlyTotal{BillingMonth: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillingMonth.Before(out[j].BillingMonth) })
	return out, nil
}

// --- appendix repo ---

type fakeAppendixRepo struct {
	store      *memStore
	failCreate bool // injected fault for rollback tests
}

func (r *fakeAppendixRepo) Create(ctx context.Context, appendix *model.ContractAppendix) error {
	if !inFakeTx(ctx) {
		return model.ErrLedgerWriteConflict
	}
	if r.failCreate {
		return errors.New("storage unavailable")
	}
	for _, a := range r.store.appendices {
		if a.SOWContractID == appendix.SOWContractID && a.AppendixNumber == appendix.AppendixNumber {
			return fmt.Errorf("duplicate appendix number %s", appendix.AppendixNumber)
		}
	}
	appendix.ID = uuid.New()
	appendix.CreatedAt = time.Now()
	appendix.UpdatedAt = appendix.CreatedAt
	r.store.appendices = append(r.store.appendices, *appendix)
	return nil
}

func (r *fakeAppendixRepo) NextNumber(ctx context.Context, sowContractID uuid.UUID) (string, error) {
	if !inFakeTx(ctx) {
		return "", model.ErrLedgerWriteConflict
	}
	var count int
	for _, a := range r.store.appendices {
		if a.SOWContractID == sowContractID {
			count++
		}
	}
	return fmt.Sprintf("PL-%03d", count+1), nil
}

func (r *fakeAppendixRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ContractAppendix, error) {
	for _, a := range r.store.appendices {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *fakeAppendixRepo) GetByChangeRequest(ctx context.Context, crID uuid.UUID) (*model.ContractAppendix, error) {
	for _, a := range r.store.appendices {
		if a.ChangeRequestID == crID {
			out := a
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *fakeAppendixRepo) ListForContract(ctx context.Context, sowContractID uuid.UUID) ([]model.ContractAppendix, error) {
	var out []model.ContractAppendix
	for _, a := range r.store.appendices {
		if a.SOWContractID == sowContractID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppendixNumber < out[j].AppendixNumber })
	return out, nil
}

func (r *fakeAppendixRepo) Sign(ctx context.Context, id uuid.UUID, signedAt time.Time) error {
	for i, a := range r.store.appendices {
		if a.ID == id {
			if a.SignedAt != nil {
				return fmt.Errorf("appendix already signed or missing: %w", model.ErrInvalidStateForEdit)
			}
			r.store.appendices[i].SignedAt = &signedAt
			return nil
		}
	}
	return fmt.Errorf("appendix already signed or missing: %w", model.ErrInvalidStateForEdit)
}

// --- history repo ---

type fakeHistoryRepo struct {
	store *memStore
}

func (r *fakeHistoryRepo) Append(ctx context.Context, crID uuid.UUID, action string, actorID uuid.UUID, actorName string) error {
	r.store.history = append(r.store.history, model.HistoryEntry{
		ID:              uuid.New(),
		ChangeRequestID: crID,
		Action:          action,
		UserID:          actorID,
		UserName:        actorName,
		Timestamp:       time.Now(),
	})
	return nil
}

func (r *fakeHistoryRepo) ListFor(ctx context.Context, crID uuid.UUID) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	for _, e := range r.store.history {
		if e.ChangeRequestID == crID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- contract repo ---

type fakeContractRepo struct {
	store *memStore
}

func (r *fakeContractRepo) GetMSAByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	c, ok := r.store.msas[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *fakeContractRepo) GetSOWByID(ctx context.Context, id uuid.UUID) (*model.SOWContract, error) {
	c, ok := r.store.sows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *fakeContractRepo) GetMSAByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.Contract, error) {
	c, ok := r.store.msas[id]
	if !ok || c.ClientID != clientID {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *fakeContractRepo) GetSOWByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.SOWContract, error) {
	c, ok := r.store.sows[id]
	if !ok || c.ClientID != clientID {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *fakeContractRepo) ListEngagedEngineers(ctx context.Context, sowContractID uuid.UUID) ([]model.EngagedEngineer, error) {
	var out []model.EngagedEngineer
	for _, e := range r.store.engineers {
		if e.SOWContractID == sowContractID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- user repo ---

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.store.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.store.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *fakeUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range r.store.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if _, ok := r.store.users[user.ID]; !ok {
		return model.ErrNotFound
	}
	r.store.users[user.ID] = *user
	return nil
}
