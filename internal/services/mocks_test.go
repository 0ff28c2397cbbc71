package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/doucovani/backend/internal/audit"
	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/pkg/fioclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// fakeStore is an in-memory repository.Store. RunInTx holds the store mutex
// for the whole callback, so transactions are serialized, and restores a
// snapshot when the callback fails.
type fakeStore struct {
	mu sync.Mutex

	nextID   int64
	users    map[string]fakeUser
	tutors   map[int64]*models.Tutor
	subjects map[int64]*models.Subject
	levels   map[int64]*models.Level
	demands  map[int64]*models.Demand
	entries  []*models.LedgerEntry
	cursor   *models.SyncCursor
	requests []*models.AccountRequest
	bankTxs  map[int64]*models.BankTransaction

	failCreateDemand int
	txCount          int
}

type fakeUser struct {
	id   int64
	hash string
}

type fakeTx struct {
	s *fakeStore
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1000,
		users:    make(map[string]fakeUser),
		tutors:   make(map[int64]*models.Tutor),
		subjects: make(map[int64]*models.Subject),
		levels:   make(map[int64]*models.Level),
		demands:  make(map[int64]*models.Demand),
		bankTxs:  make(map[int64]*models.BankTransaction),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func cloneTutor(t *models.Tutor) *models.Tutor {
	c := *t
	c.Towns = append([]int64(nil), t.Towns...)
	c.Teaches = append([]models.Capability(nil), t.Teaches...)
	return &c
}

func cloneDemand(d *models.Demand) *models.Demand {
	c := *d
	c.Towns = append([]int64(nil), d.Towns...)
	c.Targets = append([]int64(nil), d.Targets...)
	return &c
}

type fakeSnapshot struct {
	nextID   int64
	users    map[string]fakeUser
	tutors   map[int64]*models.Tutor
	demands  map[int64]*models.Demand
	entries  []*models.LedgerEntry
	cursor   *models.SyncCursor
	requests []*models.AccountRequest
	bankTxs  map[int64]*models.BankTransaction
}

func (s *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		nextID:   s.nextID,
		users:    make(map[string]fakeUser, len(s.users)),
		tutors:   make(map[int64]*models.Tutor, len(s.tutors)),
		demands:  make(map[int64]*models.Demand, len(s.demands)),
		entries:  append([]*models.LedgerEntry(nil), s.entries...),
		requests: append([]*models.AccountRequest(nil), s.requests...),
		bankTxs:  make(map[int64]*models.BankTransaction, len(s.bankTxs)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.tutors {
		snap.tutors[k] = cloneTutor(v)
	}
	for k, v := range s.demands {
		snap.demands[k] = cloneDemand(v)
	}
	for k, v := range s.bankTxs {
		snap.bankTxs[k] = v
	}
	if s.cursor != nil {
		c := *s.cursor
		snap.cursor = &c
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.nextID = snap.nextID
	s.users = snap.users
	s.tutors = snap.tutors
	s.demands = snap.demands
	s.entries = snap.entries
	s.cursor = snap.cursor
	s.requests = snap.requests
	s.bankTxs = snap.bankTxs
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	snap := s.snapshot()
	if err := fn(&fakeTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// test fixtures

func (s *fakeStore) addSubject(id, schemeID int64, name string) {
	s.subjects[id] = &models.Subject{ID: id, Name: name, Slug: name, SchemeID: schemeID}
}

func (s *fakeStore) addLevel(id, schemeID int64, name string) {
	s.levels[id] = &models.Level{ID: id, Name: name, SchemeID: schemeID}
}

func (s *fakeStore) addTutor(t *models.Tutor) *models.Tutor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if t.ReferenceCode == 0 {
		t.ReferenceCode, _ = GenerateReferenceCode(t.ID)
	}
	s.tutors[t.ID] = cloneTutor(t)
	return t
}

func (s *fakeStore) addDemand(d *models.Demand) *models.Demand {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	if d.Slug == "" {
		d.Slug = fmt.Sprintf("slug-%d", d.ID)
	}
	if d.PostedAt.IsZero() {
		d.PostedAt = time.Now()
	}
	s.demands[d.ID] = cloneDemand(d)
	return d
}

func (s *fakeStore) tutor(id int64) *models.Tutor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTutor(s.tutors[id])
}

func (s *fakeStore) demand(id int64) *models.Demand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDemand(s.demands[id])
}

func (s *fakeStore) entriesFor(tutorID int64) []*models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range s.entries {
		if e.TutorID == tutorID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// repository.Store

func (s *fakeStore) GetTutor(ctx context.Context, id int64) (*models.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTutor(t), nil
}

func (s *fakeStore) FindTutorByReferenceCode(ctx context.Context, code int64) (*models.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tutors {
		if t.ReferenceCode == code {
			return cloneTutor(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) GetCredentials(ctx context.Context, email string) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return 0, "", repository.ErrNotFound
	}
	for _, t := range s.tutors {
		if t.UserID == u.id {
			return t.ID, u.hash, nil
		}
	}
	return 0, "", repository.ErrNotFound
}

func (s *fakeStore) sortedTutors(keep func(*models.Tutor) bool) []*models.Tutor {
	var out []*models.Tutor
	for _, t := range s.tutors {
		if keep(t) {
			out = append(out, cloneTutor(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListActiveTutors(ctx context.Context) ([]*models.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTutors(func(t *models.Tutor) bool { return t.Active }), nil
}

func (s *fakeStore) ListPayLaterDebtors(ctx context.Context, since time.Time) ([]*models.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTutors(func(t *models.Tutor) bool {
		return t.PayLaterDemandID != nil && t.PayLaterSince != nil && t.PayLaterSince.Before(since)
	}), nil
}

func (s *fakeStore) UpdateTutorProfile(ctx context.Context, t *models.Tutor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tutors[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := cloneTutor(t)
	updated.Credit = stored.Credit
	updated.PayLaterDemandID, updated.PayLaterSince = stored.PayLaterDemandID, stored.PayLaterSince
	updated.Version = stored.Version
	s.tutors[t.ID] = updated
	return nil
}

func (s *fakeStore) UpdateNoticePreferences(ctx context.Context, tutorID int64, prefs models.NoticePreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[tutorID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Notices = prefs
	return nil
}

func (s *fakeStore) SetTutorPhone(ctx context.Context, tutorID int64, phone string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[tutorID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range s.tutors {
		if id != tutorID && phone != "" && other.Phone == phone {
			return repository.ErrDuplicate
		}
	}
	t.Phone, t.PhoneVerified = phone, verified
	return nil
}

func (s *fakeStore) SetTutorActive(ctx context.Context, tutorID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[tutorID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Active = active
	return nil
}

func (s *fakeStore) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *sub
	return &c, nil
}

func (s *fakeStore) GetLevel(ctx context.Context, id int64) (*models.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.levels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (s *fakeStore) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Subject
	for _, sub := range s.subjects {
		c := *sub
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateDemand(ctx context.Context, d *models.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateDemand > 0 {
		s.failCreateDemand--
		return repository.ErrDuplicate
	}
	for _, other := range s.demands {
		if other.Slug == d.Slug {
			return repository.ErrDuplicate
		}
	}
	d.ID = s.id()
	d.UpdatedAt = d.PostedAt
	s.demands[d.ID] = cloneDemand(d)
	return nil
}

func (s *fakeStore) GetDemand(ctx context.Context, id int64) (*models.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.demands[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDemand(d), nil
}

func (s *fakeStore) GetDemandBySlug(ctx context.Context, slug string) (*models.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.demands {
		if d.Slug == slug {
			return cloneDemand(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) UpdateDemandDetails(ctx context.Context, d *models.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.demands[d.ID]
	if !ok || stored.TakenBy != nil {
		return repository.ErrNotFound
	}
	updated := cloneDemand(d)
	updated.Status, updated.Discount, updated.Targets = stored.Status, stored.Discount, stored.Targets
	s.demands[d.ID] = updated
	return nil
}

func (s *fakeStore) SetDemandStatus(ctx context.Context, id int64, status models.DemandStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.demands[id]
	if !ok || d.TakenBy != nil {
		return repository.ErrNotFound
	}
	d.Status, d.UpdatedAt = status, at
	return nil
}

func (s *fakeStore) SetDemandDiscount(ctx context.Context, id int64, discount int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.demands[id]
	if !ok || d.TakenBy != nil {
		return repository.ErrNotFound
	}
	d.Discount, d.UpdatedAt = discount, at
	return nil
}

func (s *fakeStore) ListDemands(ctx context.Context, filter repository.DemandFilter) ([]*models.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Demand
	for _, d := range s.demands {
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				match = match || d.Status == st
			}
			if !match {
				continue
			}
		}
		if filter.TakenBy > 0 && (d.TakenBy == nil || *d.TakenBy != filter.TakenBy) {
			continue
		}
		if !filter.PostedSince.IsZero() && d.PostedAt.Before(filter.PostedSince) {
			continue
		}
		out = append(out, cloneDemand(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].PostedAt.After(out[j].PostedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) ListLedgerEntries(ctx context.Context, tutorID int64) ([]*models.LedgerEntry, error) {
	return s.entriesFor(tutorID), nil
}

func (s *fakeStore) GetSyncCursor(ctx context.Context) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return nil, repository.ErrNotFound
	}
	c := *s.cursor
	return &c, nil
}

func (s *fakeStore) ListUnlinkedBankTransactions(ctx context.Context, limit int) ([]*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	linked := make(map[int64]bool)
	for _, e := range s.entries {
		if e.BankTransactionID != nil {
			linked[*e.BankTransactionID] = true
		}
	}
	var out []*models.BankTransaction
	for id, bt := range s.bankTxs {
		if bt.Amount.IsPositive() && bt.VariableSymbol != "" && !linked[id] {
			c := *bt
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// repository.Tx; the store mutex is already held by RunInTx.

func (t *fakeTx) InsertUser(ctx context.Context, email, passwordHash string) (int64, error) {
	if _, ok := t.s.users[email]; ok {
		return 0, repository.ErrDuplicate
	}
	id := t.s.id()
	t.s.users[email] = fakeUser{id: id, hash: passwordHash}
	return id, nil
}

func (t *fakeTx) InsertTutor(ctx context.Context, tutor *models.Tutor) error {
	tutor.ID = t.s.id()
	tutor.Version = 1
	t.s.tutors[tutor.ID] = cloneTutor(tutor)
	return nil
}

func (t *fakeTx) SetReferenceCode(ctx context.Context, tutorID, code int64) error {
	for id, other := range t.s.tutors {
		if id != tutorID && other.ReferenceCode == code {
			return repository.ErrDuplicate
		}
	}
	stored, ok := t.s.tutors[tutorID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.ReferenceCode = code
	return nil
}

func (t *fakeTx) LockTutor(ctx context.Context, id int64) (*models.Tutor, error) {
	stored, ok := t.s.tutors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTutor(stored), nil
}

func (t *fakeTx) UpdateTutorCredit(ctx context.Context, tutor *models.Tutor) error {
	stored, ok := t.s.tutors[tutor.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != tutor.Version {
		return repository.ErrVersionConflict
	}
	stored.Credit = tutor.Credit
	stored.PayLaterDemandID, stored.PayLaterSince = tutor.PayLaterDemandID, tutor.PayLaterSince
	stored.Version++
	tutor.Version++
	return nil
}

func (t *fakeTx) LockDemand(ctx context.Context, id int64) (*models.Demand, error) {
	stored, ok := t.s.demands[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDemand(stored), nil
}

func (t *fakeTx) MarkDemandTaken(ctx context.Context, demandID, tutorID int64, at time.Time) error {
	stored, ok := t.s.demands[demandID]
	if !ok || stored.Status != models.DemandActive || stored.TakenBy != nil {
		return models.ErrDemandAlreadyTaken
	}
	stored.Status = models.DemandTaken
	stored.TakenBy = &tutorID
	stored.TakenAt = &at
	stored.UpdatedAt = at
	return nil
}

func (t *fakeTx) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	for _, other := range t.s.entries {
		if e.DemandID != nil && other.DemandID != nil && *e.DemandID == *other.DemandID {
			return repository.ErrDuplicate
		}
		if e.BankTransactionID != nil && other.BankTransactionID != nil && *e.BankTransactionID == *other.BankTransactionID {
			return repository.ErrDuplicate
		}
	}
	e.ID = t.s.id()
	c := *e
	t.s.entries = append(t.s.entries, &c)
	return nil
}

func (t *fakeTx) LockSyncCursor(ctx context.Context, initialLastID int64) (*models.SyncCursor, error) {
	if t.s.cursor == nil {
		t.s.cursor = &models.SyncCursor{LastID: initialLastID, LastPollAt: time.Unix(0, 0).UTC()}
	}
	c := *t.s.cursor
	return &c, nil
}

func (t *fakeTx) SaveSyncCursor(ctx context.Context, c *models.SyncCursor) error {
	saved := *c
	t.s.cursor = &saved
	return nil
}

func (t *fakeTx) InsertAccountRequest(ctx context.Context, r *models.AccountRequest) error {
	r.ID = t.s.id()
	c := *r
	t.s.requests = append(t.s.requests, &c)
	return nil
}

func (t *fakeTx) InsertBankTransaction(ctx context.Context, b *models.BankTransaction) error {
	if _, ok := t.s.bankTxs[b.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *b
	t.s.bankTxs[b.ID] = &c
	return nil
}

// recordingPublisher keeps every published notification.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []*Notification
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, body.(*Notification))
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) byKind(kind string) []*Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Notification
	for _, n := range p.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type MockStatementFetcher struct {
	mock.Mock
}

func (m *MockStatementFetcher) LastTransactions(ctx context.Context) (*fioclient.Statement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fioclient.Statement), args.Error(1)
}

func (m *MockStatementFetcher) SetLastID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Charges:       config.DefaultChargeTable,
		PayLaterGrace: 72 * time.Hour,
		SlugLength:    32,
		SlugRetries:   32,
		Bank: config.BankConfig{
			AccountNumber:      "2000000000/2010",
			IBAN:               "CZ6520100000002000000000",
			Currency:           "CZK",
			MinRequestInterval: 30 * time.Second,
			RequestTimeout:     5 * time.Second,
			InitialLastID:      100,
			DetailSyncTimeout:  time.Second,
		},
		Notifications: config.NotificationConfig{
			Domain:                "doucovani.cz",
			Exchange:              "tutoring_events",
			NewDemandSubject:      "New demand",
			NewDemandMessage:      "A new demand has been added",
			ConfirmNewSubject:     "New demand",
			ConfirmNewMessage:     "Your demand was added",
			ConfirmUpdatedSubject: "Demand updated",
			ConfirmUpdatedMessage: "Your demand was updated",
			DemandTakenSubject:    "A tutor has taken your demand",
			TopupSubject:          "Credit topped up",
			ReminderSubject:       "Please top up your credit",
			DigestSubject:         "Daily demand overview",
			PhoneCodeMessage:      "Your verification code is %s",
		},
		Phone: config.PhoneConfig{CodeLength: 6, CodeTTL: 300 * time.Second, MaxAttempts: 5},
	}
}

// testEnv wires the services over one fake store.
type testEnv struct {
	cfg       *config.Config
	store     *fakeStore
	publisher *recordingPublisher
	ledger    *LedgerService
	notifier  *NotificationService
	demands   *DemandService
}

func newTestEnv() *testEnv {
	cfg := testConfig()
	store := newFakeStore()
	store.addSubject(1, 1, "matematika")
	store.addSubject(2, 1, "fyzika")
	store.addSubject(3, 2, "anglictina")
	store.addLevel(1, 1, "zakladni skola")
	store.addLevel(2, 1, "stredni skola")
	store.addLevel(3, 2, "A1")

	publisher := &recordingPublisher{}
	ledger := NewLedgerService(store, audit.NewLogger())
	notifier := NewNotificationService(store, publisher, cfg)
	return &testEnv{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		ledger:    ledger,
		notifier:  notifier,
		demands:   NewDemandService(store, ledger, notifier, nil, cfg),
	}
}

// eligibleTutor teaches maths at level 1 in town 1 and has a verified phone.
func (e *testEnv) eligibleTutor(credit string) *models.Tutor {
	return e.store.addTutor(&models.Tutor{
		UserID:        e.store.id(),
		Email:         fmt.Sprintf("tutor%d@example.com", e.store.nextID),
		FirstName:     "Jana",
		LastName:      "Novakova",
		Towns:         []int64{1},
		Teaches:       []models.Capability{{SubjectID: 1, LevelID: 1, Price: 300}},
		Phone:         fmt.Sprintf("+420777%06d", e.store.nextID),
		PhoneVerified: true,
		Notices:       models.DefaultNoticePreferences(),
		Active:        true,
		Credit:        decimal.RequireFromString(credit),
	})
}

// activeDemand is maths level 1 in town 1, one student, lessons tier 1.
func (e *testEnv) activeDemand() *models.Demand {
	return e.store.addDemand(&models.Demand{
		Status:      models.DemandActive,
		SubjectID:   1,
		LevelID:     1,
		Lessons:     1,
		Students:    0,
		Towns:       []int64{1},
		FirstName:   "Petr",
		LastName:    "Svoboda",
		Email:       "student@example.com",
		SexRequired: models.SexNotRequired,
	})
}
