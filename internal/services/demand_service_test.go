package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCharge(t *testing.T) {
	tests := []struct {
		name     string
		students int
		lessons  int
		discount int
		want     string
	}{
		{"half off single student", 0, 1, 50, "30"},
		{"no discount", 3, 3, 0, "500"},
		{"free", 2, 2, 100, "0"},
		{"discount rounds in favour of the tutor", 2, 0, 33, "47"},
		{"odd base", 1, 1, 25, "75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &models.Demand{Students: tt.students, Lessons: tt.lessons, Discount: tt.discount}
			got, err := ComputeCharge(config.DefaultChargeTable, d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ComputeCharge(config.DefaultChargeTable, &models.Demand{Students: 4})
	assert.ErrorIs(t, err, ErrInvalidDemand)
	_, err = ComputeCharge(config.DefaultChargeTable, &models.Demand{Discount: 101})
	assert.ErrorIs(t, err, ErrInvalidDemand)
}

func TestCanTake(t *testing.T) {
	demand := &models.Demand{SubjectID: 1, LevelID: 1, Towns: []int64{1, 2}}
	base := func() *models.Tutor {
		return &models.Tutor{
			FirstName:     "Jana",
			LastName:      "Novakova",
			Towns:         []int64{2},
			Teaches:       []models.Capability{{SubjectID: 1, LevelID: 1}},
			Phone:         "+420777000111",
			PhoneVerified: true,
			Active:        true,
		}
	}

	tests := []struct {
		name   string
		modify func(*models.Tutor)
		want   models.EligibilityReason
	}{
		{"eligible", func(*models.Tutor) {}, models.ReasonEligible},
		{"no towns", func(t *models.Tutor) { t.Towns = nil }, models.ReasonIncompleteProfile},
		{"no name", func(t *models.Tutor) { t.LastName = " " }, models.ReasonIncompleteProfile},
		{"unverified phone", func(t *models.Tutor) { t.PhoneVerified = false }, models.ReasonUnverifiedContact},
		{"other town", func(t *models.Tutor) { t.Towns = []int64{9} }, models.ReasonNoSharedLocation},
		{"other subject", func(t *models.Tutor) { t.Teaches = []models.Capability{{SubjectID: 2, LevelID: 1}} }, models.ReasonSubjectNotTaught},
		{"other level", func(t *models.Tutor) { t.Teaches = []models.Capability{{SubjectID: 1, LevelID: 2}} }, models.ReasonLevelNotTaught},
		{"inactive", func(t *models.Tutor) { t.Active = false }, models.ReasonInactiveAccount},
		{"first failure wins", func(t *models.Tutor) { t.PhoneVerified = false; t.Active = false }, models.ReasonUnverifiedContact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tutor := base()
			tt.modify(tutor)
			assert.Equal(t, tt.want, CanTake(tutor, demand))
		})
	}
}

func TestCheckAffordability(t *testing.T) {
	tutor := &models.Tutor{Credit: dec("60")}

	payLater, err := CheckAffordability(tutor, dec("60"))
	require.NoError(t, err)
	assert.False(t, payLater)

	payLater, err = CheckAffordability(tutor, dec("61"))
	require.NoError(t, err)
	assert.True(t, payLater)

	tutor.PayLaterDemandID = int64p(3)
	_, err = CheckAffordability(tutor, dec("61"))
	assert.ErrorIs(t, err, models.ErrInsufficientCredit)
	var eligibility *models.EligibilityError
	require.True(t, errors.As(err, &eligibility))
	assert.Equal(t, models.ReasonInsufficientCredit, eligibility.Reason)
}

func TestDemandService_TakeDemand(t *testing.T) {
	env := newTestEnv()
	tutor := env.eligibleTutor("100")
	demand := env.activeDemand()

	entry, err := env.demands.TakeDemand(context.Background(), tutor.ID, demand.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryDebitDemand, entry.Type)
	assert.True(t, entry.Amount.Equal(dec("-60")))
	assert.False(t, entry.PayLater)

	stored := env.store.demand(demand.ID)
	assert.Equal(t, models.DemandTaken, stored.Status)
	require.NotNil(t, stored.TakenBy)
	assert.Equal(t, tutor.ID, *stored.TakenBy)
	assert.NotNil(t, stored.TakenAt)
	assert.True(t, env.store.tutor(tutor.ID).Credit.Equal(dec("40")))

	taken := env.publisher.byKind("demand_taken")
	require.Len(t, taken, 1)
	assert.Equal(t, []string{"student@example.com"}, taken[0].Recipients)
	assert.Contains(t, taken[0].Body, tutor.Phone)

	_, err = env.demands.TakeDemand(context.Background(), tutor.ID, demand.ID)
	assert.ErrorIs(t, err, models.ErrDemandAlreadyTaken)
}

func TestDemandService_TakeDemandPayLater(t *testing.T) {
	env := newTestEnv()
	tutor := env.eligibleTutor("10")
	first := env.activeDemand()
	second := env.activeDemand()
	ctx := context.Background()

	entry, err := env.demands.TakeDemand(ctx, tutor.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, entry.PayLater)
	assert.True(t, entry.ClosingBalance.Equal(dec("-50")))

	stored := env.store.tutor(tutor.ID)
	require.NotNil(t, stored.PayLaterDemandID)
	assert.Equal(t, first.ID, *stored.PayLaterDemandID)

	_, err = env.demands.TakeDemand(ctx, tutor.ID, second.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientCredit)
	assert.Equal(t, models.DemandActive, env.store.demand(second.ID).Status)
	assert.Len(t, env.store.entriesFor(tutor.ID), 1)
}

func TestDemandService_TakeDemandRejections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("ineligible tutor", func(t *testing.T) {
		tutor := env.eligibleTutor("500")
		tutor.PhoneVerified = false
		env.store.addTutor(tutor)
		demand := env.activeDemand()

		_, err := env.demands.TakeDemand(ctx, tutor.ID, demand.ID)
		var eligibility *models.EligibilityError
		require.True(t, errors.As(err, &eligibility))
		assert.Equal(t, models.ReasonUnverifiedContact, eligibility.Reason)
		assert.Equal(t, models.DemandActive, env.store.demand(demand.ID).Status)
		assert.True(t, env.store.tutor(tutor.ID).Credit.Equal(dec("500")))
	})

	t.Run("inactive demand", func(t *testing.T) {
		tutor := env.eligibleTutor("500")
		demand := env.activeDemand()
		demand.Status = models.DemandInactive
		env.store.addDemand(demand)

		_, err := env.demands.TakeDemand(ctx, tutor.ID, demand.ID)
		assert.ErrorIs(t, err, models.ErrDemandNotActive)
	})

	t.Run("aimed at someone else", func(t *testing.T) {
		tutor := env.eligibleTutor("500")
		other := env.eligibleTutor("500")
		demand := env.activeDemand()
		demand.Targets = []int64{other.ID}
		env.store.addDemand(demand)

		_, err := env.demands.TakeDemand(ctx, tutor.ID, demand.ID)
		assert.ErrorIs(t, err, ErrDemandNotVisible)

		_, err = env.demands.TakeDemand(ctx, other.ID, demand.ID)
		assert.NoError(t, err)
	})
}

func TestDemandService_ConcurrentTakeHasOneWinner(t *testing.T) {
	env := newTestEnv()
	demand := env.activeDemand()

	const contenders = 12
	tutors := make([]*models.Tutor, contenders)
	for i := range tutors {
		tutors[i] = env.eligibleTutor("1000")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		losses  int
	)
	for _, tutor := range tutors {
		wg.Add(1)
		go func(tutorID int64) {
			defer wg.Done()
			_, err := env.demands.TakeDemand(context.Background(), tutorID, demand.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, tutorID)
			} else if errors.Is(err, models.ErrDemandAlreadyTaken) {
				losses++
			}
		}(tutor.ID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, losses)

	stored := env.store.demand(demand.ID)
	require.NotNil(t, stored.TakenBy)
	assert.Equal(t, winners[0], *stored.TakenBy)

	debits := 0
	for _, tutor := range tutors {
		entries := env.store.entriesFor(tutor.ID)
		debits += len(entries)
		balance := env.store.tutor(tutor.ID).Credit
		assert.True(t, ProjectBalance(entries).Add(dec("1000")).Equal(balance))
	}
	assert.Equal(t, 1, debits)
}

func newDemandInput() *models.Demand {
	return &models.Demand{
		SubjectID:   1,
		LevelID:     2,
		Lessons:     1,
		Students:    0,
		Towns:       []int64{1},
		FirstName:   "Petr",
		LastName:    "Svoboda",
		Email:       " Student@Example.com ",
		SexRequired: "",
	}
}

func TestDemandService_CreateDemand(t *testing.T) {
	env := newTestEnv()
	counter := 0
	env.demands.slugFn = func(n int) (string, error) {
		counter++
		return fmt.Sprintf("%0*d", n, counter), nil
	}
	ctx := context.Background()

	t.Run("retries slug collisions", func(t *testing.T) {
		env.store.failCreateDemand = 3
		d, err := env.demands.CreateDemand(ctx, newDemandInput())
		require.NoError(t, err)
		assert.Equal(t, 4, counter)
		assert.Len(t, d.Slug, 32)
		assert.Equal(t, "student@example.com", d.Email)
		assert.Equal(t, models.SexNotRequired, d.SexRequired)
		assert.Equal(t, models.DemandActive, d.Status)

		confirmations := env.publisher.byKind("demand_confirmation")
		require.Len(t, confirmations, 1)
		assert.Contains(t, confirmations[0].Body, "https://www.doucovani.cz/moje-doucovani/"+d.Slug+"/")
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		env.store.failCreateDemand = env.cfg.SlugRetries
		_, err := env.demands.CreateDemand(ctx, newDemandInput())
		assert.ErrorIs(t, err, ErrSlugExhausted)
	})

	t.Run("level from another scheme", func(t *testing.T) {
		in := newDemandInput()
		in.SubjectID = 3
		_, err := env.demands.CreateDemand(ctx, in)
		assert.ErrorIs(t, err, models.ErrSchemeMismatch)
	})

	t.Run("validation", func(t *testing.T) {
		in := newDemandInput()
		in.Towns = nil
		_, err := env.demands.CreateDemand(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidDemand)

		in = newDemandInput()
		in.Lessons = 7
		_, err = env.demands.CreateDemand(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidDemand)

		in = newDemandInput()
		in.SubjectID = 99
		_, err = env.demands.CreateDemand(ctx, in)
		assert.ErrorIs(t, err, ErrUnknownCatalogItem)
	})
}

func TestRandomSlug(t *testing.T) {
	slug, err := randomSlug(32)
	require.NoError(t, err)
	assert.Len(t, slug, 32)
	for _, r := range slug {
		assert.True(t, strings.ContainsRune(slugAlphabet, r))
	}
}

func TestDemandService_UpdateAndStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	demand := env.activeDemand()

	upd := newDemandInput()
	upd.LevelID = 1
	upd.TimeDescription = "weekday afternoons"
	updated, err := env.demands.UpdateDemandBySlug(ctx, demand.Slug, upd)
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", updated.Email)
	assert.Equal(t, "weekday afternoons", env.store.demand(demand.ID).TimeDescription)
	assert.Len(t, env.publisher.byKind("demand_updated"), 1)

	_, err = env.demands.SetDemandStatus(ctx, demand.ID, models.DemandTaken)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	d, err := env.demands.SetDemandStatus(ctx, demand.ID, models.DemandInactive)
	require.NoError(t, err)
	assert.Equal(t, models.DemandInactive, d.Status)

	d, err = env.demands.SetDiscount(ctx, demand.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, d.Discount)
	_, err = env.demands.SetDiscount(ctx, demand.ID, 120)
	assert.ErrorIs(t, err, ErrInvalidDemand)

	tutor := env.eligibleTutor("100")
	_, err = env.demands.SetDemandStatus(ctx, demand.ID, models.DemandActive)
	require.NoError(t, err)
	_, err = env.demands.TakeDemand(ctx, tutor.ID, demand.ID)
	require.NoError(t, err)

	_, err = env.demands.SetDemandStatus(ctx, demand.ID, models.DemandClosed)
	assert.ErrorIs(t, err, models.ErrDemandAlreadyTaken)
	_, err = env.demands.UpdateDemandBySlug(ctx, demand.Slug, newDemandInput())
	assert.ErrorIs(t, err, models.ErrDemandAlreadyTaken)

	taken, err := env.demands.ListTakenDemands(ctx, tutor.ID)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, demand.ID, taken[0].ID)
}

func TestDemandService_ListVisibleDemands(t *testing.T) {
	env := newTestEnv()
	tutor := env.eligibleTutor("0")
	other := env.eligibleTutor("0")

	unsuitable := env.activeDemand()
	unsuitable.SubjectID = 2
	env.store.addDemand(unsuitable)
	suitable := env.activeDemand()
	hidden := env.activeDemand()
	hidden.Targets = []int64{other.ID}
	env.store.addDemand(hidden)
	closed := env.activeDemand()
	closed.Status = models.DemandClosed
	env.store.addDemand(closed)

	views, err := env.demands.ListVisibleDemands(context.Background(), tutor.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, suitable.ID, views[0].ID)
	assert.True(t, views[0].Suitable)
	assert.Equal(t, unsuitable.ID, views[1].ID)
	assert.False(t, views[1].Suitable)
	assert.True(t, views[0].Charge.Equal(dec("60")))
}

type countingSyncer struct {
	calls int
	err   error
}

func (s *countingSyncer) Sync(ctx context.Context) (*SyncResult, error) {
	s.calls++
	return &SyncResult{Outcome: SyncSkipped}, s.err
}

func TestDemandService_GetDemandForTutor(t *testing.T) {
	env := newTestEnv()
	syncer := &countingSyncer{err: errors.New("bank down")}
	env.demands.syncer = syncer
	ctx := context.Background()

	tutor := env.eligibleTutor("0")
	demand := env.activeDemand()

	check, err := env.demands.GetDemandForTutor(ctx, tutor.ID, demand.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, syncer.calls)
	assert.True(t, check.CanTake)
	assert.True(t, check.PayLater)
	assert.True(t, check.Suitable)
	assert.Equal(t, models.ReasonEligible, check.Reason)

	other := env.eligibleTutor("0")
	aimed := env.activeDemand()
	aimed.Targets = []int64{other.ID}
	env.store.addDemand(aimed)
	_, err = env.demands.GetDemandForTutor(ctx, tutor.ID, aimed.ID)
	assert.ErrorIs(t, err, ErrDemandNotVisible)
}

func TestDemandService_GetDemandForTutorDemandState(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tutor := env.eligibleTutor("500")
	taker := env.eligibleTutor("500")

	inactive := env.activeDemand()
	inactive.Status = models.DemandInactive
	env.store.addDemand(inactive)

	closed := env.activeDemand()
	closed.Status = models.DemandClosed
	env.store.addDemand(closed)

	taken := env.activeDemand()
	taken.Status = models.DemandTaken
	taken.TakenBy = &taker.ID
	env.store.addDemand(taken)

	tests := []struct {
		name   string
		tutor  int64
		demand int64
		reason models.EligibilityReason
	}{
		{"inactive", tutor.ID, inactive.ID, models.ReasonNotActive},
		{"closed", tutor.ID, closed.ID, models.ReasonNotActive},
		{"taken by another tutor", tutor.ID, taken.ID, models.ReasonAlreadyTaken},
		{"taken by the viewer", taker.ID, taken.ID, models.ReasonAlreadyTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := env.demands.GetDemandForTutor(ctx, tt.tutor, tt.demand)
			require.NoError(t, err)
			assert.False(t, check.CanTake)
			assert.Equal(t, tt.reason, check.Reason)
			assert.Equal(t, tt.reason.Message(), check.Message)
			assert.NotEqual(t, models.ReasonEligible.Message(), check.Message)
		})
	}
}
