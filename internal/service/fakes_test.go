package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tourguide-payments/internal/domain"
	"tourguide-payments/internal/infrastructure/payment"
	"tourguide-payments/internal/repo"

	"github.com/google/uuid"
)

// store is an in-memory stand-in for the booking and transaction tables.
// Its transactor snapshots all rows and restores them when fn fails, and
// serialises transactions the way row locks would.
type store struct {
	mu           sync.Mutex
	txMu         sync.Mutex
	guides       map[uuid.UUID]domain.GuideBooking
	vehicles     map[uuid.UUID]domain.VehicleBooking
	transactions map[uuid.UUID]domain.Transaction
	names        map[uuid.UUID]string

	bookingUpdateErr error
	writes           int
	commits          int
	rollbacks        int

	// onLock runs when a transaction row is read for update, before the read.
	onLock func(id uuid.UUID)
}

func newStore() *store {
	return &store{
		guides:       make(map[uuid.UUID]domain.GuideBooking),
		vehicles:     make(map[uuid.UUID]domain.VehicleBooking),
		transactions: make(map[uuid.UUID]domain.Transaction),
		names:        make(map[uuid.UUID]string),
	}
}

type snapshot struct {
	guides       map[uuid.UUID]domain.GuideBooking
	vehicles     map[uuid.UUID]domain.VehicleBooking
	transactions map[uuid.UUID]domain.Transaction
}

func (s *store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		guides:       make(map[uuid.UUID]domain.GuideBooking, len(s.guides)),
		vehicles:     make(map[uuid.UUID]domain.VehicleBooking, len(s.vehicles)),
		transactions: make(map[uuid.UUID]domain.Transaction, len(s.transactions)),
	}
	for k, v := range s.guides {
		snap.guides[k] = v
	}
	for k, v := range s.vehicles {
		snap.vehicles[k] = v
	}
	for k, v := range s.transactions {
		snap.transactions[k] = v
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guides = snap.guides
	s.vehicles = snap.vehicles
	s.transactions = snap.transactions
}

func (s *store) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *store) addGuideBooking(customerID uuid.UUID, total string, guideName string) *domain.GuideBooking {
	s.mu.Lock()
	defer s.mu.Unlock()

	guideID := uuid.New()
	s.names[guideID] = guideName
	b := domain.GuideBooking{
		BookingRecord: newRecord(customerID, total),
		GuideID:       guideID,
	}
	s.guides[b.ID] = b
	return &b
}

func (s *store) addVehicleBooking(customerID uuid.UUID, total string, vehicleName string) *domain.VehicleBooking {
	s.mu.Lock()
	defer s.mu.Unlock()

	vehicleID := uuid.New()
	s.names[vehicleID] = vehicleName
	b := domain.VehicleBooking{
		BookingRecord: newRecord(customerID, total),
		VehicleID:     vehicleID,
	}
	s.vehicles[b.ID] = b
	return &b
}

func newRecord(customerID uuid.UUID, total string) domain.BookingRecord {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return domain.BookingRecord{
		ID:            uuid.New(),
		CustomerID:    customerID,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 3),
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		TotalPrice:    mustDecimal(total),
		CreatedAt:     start.AddDate(0, -1, 0),
		UpdatedAt:     start.AddDate(0, -1, 0),
	}
}

func (s *store) booking(ref domain.BookingRef) domain.BookingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.Type == domain.BookingGuide {
		return s.guides[ref.ID].BookingRecord
	}
	return s.vehicles[ref.ID].BookingRecord
}

func (s *store) transaction(id uuid.UUID) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[id]
}

func (s *store) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *store) setBookingStatus(ref domain.BookingRef, status domain.BookingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.Type == domain.BookingGuide {
		b := s.guides[ref.ID]
		b.Status = status
		s.guides[ref.ID] = b
		return
	}
	b := s.vehicles[ref.ID]
	b.Status = status
	s.vehicles[ref.ID] = b
}

type bookingRepo struct{ s *store }

var _ repo.BookingRepo = bookingRepo{}

func (r bookingRepo) FindGuideBooking(_ context.Context, id uuid.UUID) (*domain.GuideBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.guides[id]
	if !ok {
		return nil, fmt.Errorf("%w: guide booking %s", domain.ErrNotFound, id)
	}
	return &b, nil
}

func (r bookingRepo) FindVehicleBooking(_ context.Context, id uuid.UUID) (*domain.VehicleBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle booking %s", domain.ErrNotFound, id)
	}
	return &b, nil
}

func (r bookingRepo) Find(ctx context.Context, ref domain.BookingRef) (domain.Booking, error) {
	switch ref.Type {
	case domain.BookingGuide:
		b, err := r.FindGuideBooking(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return b, nil
	case domain.BookingVehicle:
		b, err := r.FindVehicleBooking(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown booking type %q", domain.ErrValidation, ref.Type)
}

func (r bookingRepo) UpdateStatus(_ context.Context, _ repo.DBTX, ref domain.BookingRef, patch domain.StatusPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bookingUpdateErr != nil {
		return r.s.bookingUpdateErr
	}
	r.s.writes++

	switch ref.Type {
	case domain.BookingGuide:
		b, ok := r.s.guides[ref.ID]
		if !ok {
			return domain.ErrNotFound
		}
		b.Status, b.PaymentStatus = patch.Status, patch.PaymentStatus
		r.s.guides[ref.ID] = b
	case domain.BookingVehicle:
		b, ok := r.s.vehicles[ref.ID]
		if !ok {
			return domain.ErrNotFound
		}
		b.Status, b.PaymentStatus = patch.Status, patch.PaymentStatus
		r.s.vehicles[ref.ID] = b
	}
	return nil
}

func (r bookingRepo) Create(_ context.Context, _ repo.DBTX, booking domain.Booking) error {
	return errors.New("not used")
}

type transactionRepo struct{ s *store }

var _ repo.TransactionRepo = transactionRepo{}

func (r transactionRepo) Create(_ context.Context, _ repo.DBTX, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	r.s.transactions[t.ID] = *t
	return nil
}

func (r transactionRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	return &t, nil
}

func (r transactionRepo) FindByIntentID(_ context.Context, intentID string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.PaymentIntentID == intentID {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, intentID)
}

func (r transactionRepo) FindByIDForUpdate(ctx context.Context, _ repo.DBTX, id uuid.UUID) (*domain.Transaction, error) {
	if r.s.onLock != nil {
		r.s.onLock(id)
	}
	return r.FindByID(ctx, id)
}

func (r transactionRepo) FindByIntentIDForUpdate(ctx context.Context, _ repo.DBTX, intentID string) (*domain.Transaction, error) {
	return r.FindByIntentID(ctx, intentID)
}

func (r transactionRepo) FindCompletedForBooking(_ context.Context, _ repo.DBTX, ref domain.BookingRef) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.Booking() == ref && t.Status == domain.TransactionCompleted {
			return &t, nil
		}
	}
	return nil, nil
}

func (r transactionRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var all []domain.Transaction
	for _, t := range r.s.transactions {
		if t.UserID == userID {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return []domain.Transaction{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (r transactionRepo) Update(_ context.Context, _ repo.DBTX, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transactions[t.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.writes++
	r.s.transactions[t.ID] = *t
	return nil
}

func (r transactionRepo) FindPendingBefore(_ context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.s.transactions {
		if t.Status == domain.TransactionPending && t.CreatedAt.Before(before) {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r transactionRepo) MarkReconciled(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type directoryRepo struct{ s *store }

var _ repo.DirectoryRepo = directoryRepo{}

func (r directoryRepo) name(id uuid.UUID) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.names[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return n, nil
}

func (r directoryRepo) GuideName(_ context.Context, id uuid.UUID) (string, error) {
	return r.name(id)
}

func (r directoryRepo) VehicleName(_ context.Context, id uuid.UUID) (string, error) {
	return r.name(id)
}

func (r directoryRepo) DisplayName(_ context.Context, b domain.Booking) (string, error) {
	return r.name(b.ProviderID())
}

func (r directoryRepo) CreateUser(context.Context, repo.DBTX, uuid.UUID, string, string) error {
	return errors.New("not used")
}

func (r directoryRepo) CreateGuide(context.Context, repo.DBTX, uuid.UUID, uuid.UUID) error {
	return errors.New("not used")
}

func (r directoryRepo) CreateVehicle(context.Context, repo.DBTX, uuid.UUID, uuid.UUID, string) error {
	return errors.New("not used")
}

// recordingGateway keeps every intent request it forwards.
type recordingGateway struct {
	*payment.MockGateway
	mu       sync.Mutex
	requests []payment.IntentRequest
}

func (g *recordingGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.MockGateway.CreateIntent(ctx, req)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
	err    error
}

func (r *eventRecorder) Notify(_ context.Context, e domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *eventRecorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
