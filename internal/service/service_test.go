package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/classifier"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

const testSecret = "mysecret"

type fixture struct {
	repo          *repository.MemoryComplaintRepository
	gate          *MutationGate
	complaints    *ComplaintService
	notifications *NotificationService
	clock         *time.Time
}

func newFixture(t *testing.T, failuresPerMinute int) *fixture {
	t.Helper()
	repo := repository.NewMemoryComplaintRepository()
	secrets := auth.NewSecretManager(bcrypt.MinCost)
	dispatcher := events.NewInMemoryDispatcher()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{repo: repo, clock: &clock}

	f.gate = NewMutationGate(GateDependencies{
		ComplaintRepo:              repo,
		Secrets:                    secrets,
		Dispatcher:                 dispatcher,
		Metrics:                    observability.NewMetrics(),
		MaxFailedAttemptsPerMinute: failuresPerMinute,
		Clock:                      func() time.Time { return *f.clock },
	})
	f.complaints = NewComplaintService(ComplaintDependencies{
		ComplaintRepo: repo,
		Secrets:       secrets,
		Classifier:    classifier.NewKeywordClassifier(nil),
		Gate:          f.gate,
		Dispatcher:    dispatcher,
	})
	f.notifications = NewNotificationService(dispatcher, nil, config.NotificationConfig{})
	f.notifications.RegisterHandlers()
	return f
}

func (f *fixture) fileChat(t *testing.T, contact string) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.File(context.Background(), &domain.Complaint{
		SubmitterName:    "telegram user",
		SubmitterContact: contact,
		Title:            "Pothole on MG Road",
		Description:      "Large pothole on MG Road near the bus stand, dangerous at night",
		Category:         domain.CategoryRoads,
		Priority:         domain.PriorityHigh,
		Location:         "MG Road",
		Channel:          domain.ChannelChat,
	}, testSecret)
	require.NoError(t, err)
	return c
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, address, text string) error {
	return m.Called(ctx, address, text).Error(0)
}

func TestComplaintService_FileStoresOnlyTheHash(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")

	assert.Regexp(t, `^CMP-[0-9A-F]{8}$`, c.PublicID)
	assert.Equal(t, domain.StatusSubmitted, c.Status)
	assert.NotEqual(t, testSecret, c.SecretHash)
	assert.NotContains(t, c.SecretHash, testSecret)

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), c.SecretHash)
	assert.NotContains(t, string(raw), testSecret)
}

func TestComplaintService_FileRejectsUnusableSecret(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.complaints.File(context.Background(), &domain.Complaint{Title: "x", Description: "y"}, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.complaints.File(context.Background(), &domain.Complaint{Title: "x", Description: "y"}, strings.Repeat("s", 73))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestComplaintService_Submit(t *testing.T) {
	f := newFixture(t, 0)

	c, err := f.complaints.Submit(context.Background(), ComplaintSubmitInput{
		SubmitterName:    "Asha",
		SubmitterContact: "asha@example.com",
		Title:            "Drain overflowing",
		Description:      "The drain outside our lane has been overflowing with sewage for a week",
		Location:         "Ward 12",
		Secret:           testSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelWeb, c.Channel)
	assert.Equal(t, domain.CategoryDrainage, c.Category)
	require.NotNil(t, c.Classification)
	assert.Equal(t, "keyword", c.Classification.Provider)

	c, err = f.complaints.Submit(context.Background(), ComplaintSubmitInput{
		Title:         "Broken bench",
		Description:   "The bench near the fountain is broken and has sharp edges",
		CategoryLabel: "Parks & Public Spaces",
		Secret:        testSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryParks, c.Category)
}

func TestComplaintService_LookupAcceptsBothIDs(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()

	for _, ref := range []string{c.PublicID, strings.ToLower(c.PublicID), " " + c.PublicID + " ", c.ID} {
		got, err := f.complaints.Lookup(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, c.ID, got.ID)
	}
	for _, ref := range []string{"", "CMP-", "CMP-ZZZZZZZZ", "CMP-00000000", "hello"} {
		_, err := f.complaints.Lookup(ctx, ref)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, ref)
	}
}

func TestMutationGate_Soundness(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()

	got, err := f.gate.Authorize(ctx, c.PublicID, testSecret)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	for _, wrong := range []string{"", "MYSECRET", "mysecret ", "wrong", c.SecretHash} {
		_, err := f.gate.Authorize(ctx, c.PublicID, wrong)
		assert.ErrorIs(t, err, apperrors.ErrAuthFailure, "%q", wrong)
	}

	_, err = f.gate.Authorize(ctx, "CMP-FFFFFFFF", testSecret)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMutationGate_SoundnessAtLongestSecret(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	secret := strings.Repeat("a", auth.MaxSecretLength)
	c, err := f.complaints.File(ctx, &domain.Complaint{
		SubmitterContact: "citizen@example.org",
		Title:            "Streetlight out",
		Description:      "Streetlight outside house 14 has been dark for a week",
		Channel:          domain.ChannelWeb,
	}, secret)
	require.NoError(t, err)

	_, err = f.gate.Authorize(ctx, c.PublicID, secret)
	require.NoError(t, err)
	for _, wrong := range []string{secret + "x", secret + secret, secret[:len(secret)-1]} {
		_, err := f.gate.Authorize(ctx, c.PublicID, wrong)
		assert.ErrorIs(t, err, apperrors.ErrAuthFailure, "%d bytes", len(wrong))
	}
}

func TestMutationGate_WrongSecretChangesNothing(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()
	title := "changed"
	inProgress := domain.StatusInProgress

	_, err := f.gate.Edit(ctx, c.PublicID, "wrong", EditInput{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrAuthFailure)
	_, _, err = f.gate.AppendUpdate(ctx, c.PublicID, "wrong", "moving on", &inProgress)
	assert.ErrorIs(t, err, apperrors.ErrAuthFailure)
	_, err = f.gate.Withdraw(ctx, c.PublicID, "wrong")
	assert.ErrorIs(t, err, apperrors.ErrAuthFailure)

	got, updates, err := f.complaints.Track(ctx, c.PublicID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, domain.StatusSubmitted, got.Status)
	assert.Empty(t, updates)
}

func TestMutationGate_Edit(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()
	location := "  MG Road, opposite the post office "

	got, err := f.gate.Edit(ctx, c.PublicID, testSecret, EditInput{Location: &location})
	require.NoError(t, err)
	assert.Equal(t, "MG Road, opposite the post office", got.Location)
	assert.Equal(t, c.Title, got.Title)
	assert.False(t, got.UpdatedAt.Before(c.UpdatedAt))

	_, err = f.gate.Edit(ctx, c.PublicID, testSecret, EditInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	blank := "   "
	_, err = f.gate.Edit(ctx, c.PublicID, testSecret, EditInput{Title: &blank})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMutationGate_TerminalComplaintIsImmutable(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "web-user@example.com")
	ctx := context.Background()

	withdrawn, err := f.gate.Withdraw(ctx, c.PublicID, testSecret)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, withdrawn.Status)

	inProgress := domain.StatusInProgress
	_, _, err = f.gate.AppendUpdate(ctx, c.PublicID, testSecret, "reopen please", &inProgress)
	assert.ErrorIs(t, err, apperrors.ErrComplaintClosed)
	_, err = f.gate.Withdraw(ctx, c.PublicID, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrComplaintClosed)
	title := "new title"
	_, err = f.gate.Edit(ctx, c.PublicID, testSecret, EditInput{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrComplaintClosed)

	official := &domain.Official{ID: "9f1c7a56-0000-4000-8000-000000000001", Role: domain.OfficialRoleOfficer}
	_, _, err = f.complaints.SetStatus(ctx, c.PublicID, official, domain.StatusResolved, "done")
	assert.ErrorIs(t, err, apperrors.ErrComplaintClosed)

	got, updates, err := f.complaints.Track(ctx, c.PublicID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	require.Len(t, updates, 1)
	assert.Equal(t, WithdrawalMessage, updates[0].Message)
	assert.Equal(t, domain.ActorCitizen, updates[0].ActorType)
	assert.Equal(t, got.Status, domain.DeriveStatus(domain.StatusSubmitted, updates))
}

func TestMutationGate_MessageOnClosedComplaint(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()
	_, err := f.gate.Withdraw(ctx, c.PublicID, testSecret)
	require.NoError(t, err)

	got, entry, err := f.gate.AppendUpdate(ctx, c.PublicID, testSecret, "thanks anyway", nil)
	require.NoError(t, err)
	assert.Nil(t, entry.Status)
	assert.Equal(t, domain.StatusRejected, got.Status)
}

func TestMutationGate_ConcurrentWithdrawals(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")

	const n = 12
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		closed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gate.Withdraw(context.Background(), c.PublicID, testSecret)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, apperrors.ErrComplaintClosed):
				closed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, closed)
	_, updates, err := f.complaints.Track(context.Background(), c.PublicID)
	require.NoError(t, err)
	assert.Len(t, updates, 1)
}

func TestMutationGate_ThrottlesRepeatedFailures(t *testing.T) {
	f := newFixture(t, 2)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gate.Authorize(ctx, c.PublicID, "guess")
		assert.ErrorIs(t, err, apperrors.ErrAuthFailure)
	}
	_, err := f.gate.Authorize(ctx, c.PublicID, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrTooManyAttempts)
	_, err = f.gate.Withdraw(ctx, c.PublicID, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrTooManyAttempts)

	other := f.fileChat(t, "telegram:43")
	_, err = f.gate.Authorize(ctx, other.PublicID, testSecret)
	assert.NoError(t, err)

	*f.clock = f.clock.Add(time.Minute)
	_, err = f.gate.Authorize(ctx, c.PublicID, testSecret)
	assert.NoError(t, err)
}

func TestComplaintService_SetStatusNotifiesChatComplainant(t *testing.T) {
	f := newFixture(t, 0)
	notifier := &mockNotifier{}
	f.notifications.RegisterNotifier("telegram", notifier)
	c := f.fileChat(t, "telegram:42")

	notifier.On("Notify", mock.Anything, "telegram:42", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, c.PublicID) && strings.Contains(text, "in-progress")
	})).Return(nil).Once()

	official := &domain.Official{ID: "9f1c7a56-0000-4000-8000-000000000001", Role: domain.OfficialRoleOfficer}
	got, entry, err := f.complaints.SetStatus(context.Background(), c.PublicID, official, domain.StatusInProgress, "crew assigned")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, domain.ActorOfficial, entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, official.ID, *entry.ActorID)
	notifier.AssertExpectations(t)
}

func TestComplaintService_SetStatusValidates(t *testing.T) {
	f := newFixture(t, 0)
	c := f.fileChat(t, "telegram:42")
	ctx := context.Background()

	_, _, err := f.complaints.SetStatus(ctx, c.PublicID, nil, domain.StatusResolved, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, _, err = f.complaints.SetStatus(ctx, c.PublicID, &domain.Official{ID: "x"}, "done", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAuthService(t *testing.T) {
	officials := repository.NewMemoryOfficialRepository()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}, officials)
	ctx := context.Background()

	created, err := svc.CreateOfficial(ctx, "Ravi", "Ravi@City.gov", "correct horse", domain.OfficialRoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, "ravi@city.gov", created.Email)

	_, err = svc.CreateOfficial(ctx, "Ravi", "ravi@city.gov", "correct horse", domain.OfficialRoleSupervisor)
	assert.Error(t, err)
	_, err = svc.CreateOfficial(ctx, "Bad", "bad@city.gov", "correct horse", "JANITOR")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	official, token, exp, err := svc.LoginOfficial(ctx, "ravi@city.gov", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, official.ID)
	assert.True(t, exp.After(time.Now()))
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.OfficialRoleSupervisor, claims.Role)

	_, _, _, err = svc.LoginOfficial(ctx, "ravi@city.gov", "wrong horse")
	assert.Equal(t, 401, apperrors.ToDomainError(err).HTTPStatus)
	_, _, _, err = svc.LoginOfficial(ctx, "nobody@city.gov", "correct horse")
	assert.Equal(t, 401, apperrors.ToDomainError(err).HTTPStatus)
}
