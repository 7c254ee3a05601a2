package booking

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
	postgresrepo "github.com/ticketarena/ticketarena/internal/repository/postgres"
)

type inventoryKey struct {
	eventID  int64
	category domain.TicketCategoryID
}

// memStore mimics the transactional store: reservation plus insert is atomic,
// and transitions run with the booking "locked" under one mutex.
type memStore struct {
	mu       sync.Mutex
	capacity map[inventoryKey]int
	prices   map[inventoryKey]decimal.Decimal
	bookings map[uuid.UUID]*domain.Booking
}

func newMemStore() *memStore {
	return &memStore{
		capacity: make(map[inventoryKey]int),
		prices:   make(map[inventoryKey]decimal.Decimal),
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

func (m *memStore) addCategory(eventID int64, cat domain.TicketCategoryID, price string, capacity int) {
	k := inventoryKey{eventID, cat}
	m.capacity[k] = capacity
	m.prices[k] = decimal.RequireFromString(price)
}

func (m *memStore) remaining(eventID int64, cat domain.TicketCategoryID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity[inventoryKey{eventID, cat}]
}

func (m *memStore) CreateBooking(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	debited := make(map[inventoryKey]int)

	rollback := func() {
		for k, qty := range debited {
			m.capacity[k] += qty
		}
	}

	order, counts := domain.SeatCounts(b.Seats)
	for _, cat := range order {
		k := inventoryKey{b.EventID, cat}
		qty := counts[cat]

		price, ok := m.prices[k]
		if !ok {
			rollback()
			return nil, repository.ErrNotFound
		}

		if m.capacity[k] < qty {
			rollback()
			return nil, repository.ErrInsufficientCapacity
		}

		m.capacity[k] -= qty
		debited[k] += qty
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	b.TotalPrice = total
	b.Status = domain.StatusPending

	stored := *b
	m.bookings[b.ID] = &stored

	return b, nil
}

func (m *memStore) TransitionBooking(
	_ context.Context,
	id uuid.UUID,
	decide postgresrepo.TransitionFunc,
) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	snapshot := *b
	target, release, err := decide(&snapshot)
	if err != nil {
		return nil, err
	}

	b.Status = target
	if release {
		order, counts := domain.SeatCounts(b.Seats)
		for _, cat := range order {
			m.capacity[inventoryKey{b.EventID, cat}] += counts[cat]
		}
	}

	out := *b
	return &out, nil
}

func (m *memStore) GetBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	out := *b
	return &out, nil
}

func (m *memStore) ListBookingsByUser(
	_ context.Context,
	userID int64,
	limit, offset int,
) ([]domain.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []domain.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			all = append(all, *b)
		}
	}

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], total, nil
}

func newTestService(store Store) *Service {
	return New(store, nil, nil, nil, Config{})
}

const eventID = int64(42)

var owner = domain.Actor{UserID: 7, Role: domain.RoleUser}

func TestCreate_SnapshotsTotalPrice(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketVIP, "5000.00", 10)
	store.addCategory(eventID, domain.TicketStandard, "1500.50", 10)

	svc := newTestService(store)

	b, err := svc.Create(context.Background(), owner, eventID,
		[]domain.TicketCategoryID{domain.TicketVIP, domain.TicketVIP, domain.TicketStandard}, "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, b.Status)
	assert.True(t, b.TotalPrice.Equal(decimal.RequireFromString("11500.50")),
		"got total %s", b.TotalPrice)
	assert.Equal(t, 8, store.remaining(eventID, domain.TicketVIP))
	assert.Equal(t, 9, store.remaining(eventID, domain.TicketStandard))
}

func TestCreate_ExactlyRemainingSeats(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 3)

	svc := newTestService(store)
	seats := []domain.TicketCategoryID{domain.TicketStandard, domain.TicketStandard, domain.TicketStandard}

	_, err := svc.Create(context.Background(), owner, eventID, seats, "")
	require.NoError(t, err)
	assert.Equal(t, 0, store.remaining(eventID, domain.TicketStandard))

	// The category is now sold out.
	_, err = svc.Create(context.Background(), owner, eventID,
		[]domain.TicketCategoryID{domain.TicketStandard}, "")
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestCreate_InsufficientCapacityRollsBackOtherCategories(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketVIP, "5000.00", 5)
	store.addCategory(eventID, domain.TicketChild, "500.00", 1)

	svc := newTestService(store)

	_, err := svc.Create(context.Background(), owner, eventID,
		[]domain.TicketCategoryID{domain.TicketVIP, domain.TicketChild, domain.TicketChild}, "")
	require.ErrorIs(t, err, ErrInsufficientCapacity)

	// The VIP debit must not leak.
	assert.Equal(t, 5, store.remaining(eventID, domain.TicketVIP))
	assert.Equal(t, 1, store.remaining(eventID, domain.TicketChild))
}

func TestCreate_UnknownCategoryOrEvent(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 5)

	svc := newTestService(store)

	// Valid code, but the event never defined a vip category.
	_, err := svc.Create(context.Background(), owner, eventID,
		[]domain.TicketCategoryID{domain.TicketVIP}, "")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.Create(context.Background(), owner, int64(999),
		[]domain.TicketCategoryID{domain.TicketStandard}, "")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestCreate_InputValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Create(context.Background(), owner, eventID, nil, "")
	assert.ErrorIs(t, err, ErrNoSeats)

	_, err = svc.Create(context.Background(), owner, eventID,
		[]domain.TicketCategoryID{"premium"}, "")
	assert.ErrorIs(t, err, ErrInvalidSeatCategory)
}

func TestCreate_LastSeatRace(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketVIP, "5000.00", 1)

	svc := newTestService(store)

	const attempts = 16

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Create(context.Background(),
				domain.Actor{UserID: userID, Role: domain.RoleUser},
				eventID, []domain.TicketCategoryID{domain.TicketVIP}, "")
			results <- err
		}(int64(i + 1))
	}

	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrInsufficientCapacity)
		rejected++
	}

	assert.Equal(t, 1, ok, "exactly one buyer gets the last seat")
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 0, store.remaining(eventID, domain.TicketVIP))
}

func createBooking(t *testing.T, svc *Service, seats []domain.TicketCategoryID) *domain.Booking {
	t.Helper()

	b, err := svc.Create(context.Background(), owner, eventID, seats, "")
	require.NoError(t, err)
	return b
}

func TestUpdateStatus_ConfirmKeepsSeats(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketStandard, domain.TicketStandard})

	updated, err := svc.UpdateStatus(context.Background(), owner, b.ID, domain.StatusConfirmed)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, updated.Status)
	assert.Equal(t, 3, store.remaining(eventID, domain.TicketStandard), "confirm must not touch inventory")
}

func TestCancel_ReleasesSeats(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketVIP, "5000.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketVIP, domain.TicketVIP})
	require.Equal(t, 3, store.remaining(eventID, domain.TicketVIP))

	cancelled, err := svc.Cancel(context.Background(), owner, b.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, store.remaining(eventID, domain.TicketVIP))
}

func TestCancel_SecondCancelDoesNotReleaseTwice(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketVIP, "5000.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketVIP})

	_, err := svc.Cancel(context.Background(), owner, b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), owner, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 5, store.remaining(eventID, domain.TicketVIP))
}

func TestCancel_ConfirmedRequiresAdmin(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketStandard, domain.TicketStandard, domain.TicketStandard})

	_, err := svc.UpdateStatus(context.Background(), owner, b.ID, domain.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, 2, store.remaining(eventID, domain.TicketStandard))

	_, err = svc.Cancel(context.Background(), owner, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	cancelled, err := svc.Cancel(context.Background(), admin, b.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, store.remaining(eventID, domain.TicketStandard))
}

func TestUpdateStatus_Errors(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketStandard})

	_, err := svc.UpdateStatus(context.Background(), owner, uuid.New(), domain.StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.UpdateStatus(context.Background(), owner, b.ID, domain.BookingStatus("refunded"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	stranger := domain.Actor{UserID: 99, Role: domain.RoleUser}
	_, err = svc.UpdateStatus(context.Background(), stranger, b.ID, domain.StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 5)

	svc := newTestService(store)
	b := createBooking(t, svc, []domain.TicketCategoryID{domain.TicketStandard})

	got, err := svc.Get(context.Background(), owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	stranger := domain.Actor{UserID: 99, Role: domain.RoleUser}
	_, err = svc.Get(context.Background(), stranger, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	_, err = svc.Get(context.Background(), admin, b.ID)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListByUser_OnlyOwnBookings(t *testing.T) {
	store := newMemStore()
	store.addCategory(eventID, domain.TicketStandard, "100.00", 20)

	svc := newTestService(store)

	other := domain.Actor{UserID: 8, Role: domain.RoleUser}
	for i := 0; i < 3; i++ {
		createBooking(t, svc, []domain.TicketCategoryID{domain.TicketStandard})
	}
	_, err := svc.Create(context.Background(), other, eventID,
		[]domain.TicketCategoryID{domain.TicketStandard}, "")
	require.NoError(t, err)

	items, total, err := svc.ListByUser(context.Background(), owner, 1, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 3, total)
	for _, b := range items {
		assert.Equal(t, owner.UserID, b.UserID)
	}
}
