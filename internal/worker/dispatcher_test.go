package worker

import (
	"context"
	"errors"
	"testing"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLive struct {
	mock.Mock
}

func (m *MockLive) Run(ctx context.Context, onChat func(models.ChatMessage), onDonation func(models.DonationEvent)) error {
	args := m.Called(ctx, onChat, onDonation)
	return args.Error(0)
}

func (m *MockLive) Users(ctx context.Context) ([]models.LiveUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LiveUser), args.Error(1)
}

func (m *MockLive) SendMessage(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Resolve(ctx context.Context, correlationID string, data interface{}) error {
	args := m.Called(ctx, correlationID, data)
	return args.Error(0)
}

func (m *MockSettler) Reject(ctx context.Context, correlationID, message string) error {
	args := m.Called(ctx, correlationID, message)
	return args.Error(0)
}

func newDispatcher(live *MockLive, settler *MockSettler) *Dispatcher {
	return &Dispatcher{Live: live, Callback: settler, Log: logger.NewLogger()}
}

func TestHandle_ReloadInvokesCallback(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	d := newDispatcher(live, settler)

	reloads := 0
	d.OnReload = func() { reloads++ }
	d.Handle(context.Background(), models.WorkerCommand{Type: models.WorkerCmdReload})

	assert.Equal(t, 1, reloads)
	live.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestHandle_InsertPaidAnnouncesWhenAsked(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	live.On("SendMessage", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	d := newDispatcher(live, settler)
	d.Handle(context.Background(), models.WorkerCommand{
		Type:        models.WorkerCmdInsertPaid,
		User:        &models.LiveUser{ID: "viewer-1", Nickname: "Viewer"},
		SendMessage: true,
	})

	live.AssertCalled(t, "SendMessage", mock.Anything,
		"@Viewer you have been granted a paid song request. Type \"!sr <title - artist>\"")
}

func TestHandle_InsertPaidSilentByDefault(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	d := newDispatcher(live, settler)

	d.Handle(context.Background(), models.WorkerCommand{
		Type: models.WorkerCmdInsertPaid,
		User: &models.LiveUser{ID: "viewer-1", Nickname: "Viewer"},
	})

	live.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestHandle_InsertPaidWithoutUserIsDropped(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	d := newDispatcher(live, settler)

	d.Handle(context.Background(), models.WorkerCommand{
		Type:        models.WorkerCmdInsertPaid,
		SendMessage: true,
	})

	live.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestHandle_UserListResolvesWithUsers(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	users := []models.LiveUser{
		{ID: "u-1", Nickname: "One"},
		{ID: "u-2", Nickname: "Two"},
	}
	live.On("Users", mock.Anything).Return(users, nil)
	settler.On("Resolve", mock.Anything, "corr-1", mock.MatchedBy(func(data interface{}) bool {
		result, ok := data.(models.UserListResult)
		return ok && result.Success && len(result.Users) == 2
	})).Return(nil)

	d := newDispatcher(live, settler)
	d.Handle(context.Background(), models.WorkerCommand{
		Type:          models.WorkerCmdUserList,
		CorrelationID: "corr-1",
	})

	settler.AssertExpectations(t)
	settler.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UserListRejectsOnPlatformFailure(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	live.On("Users", mock.Anything).Return(nil, errors.New("platform down"))
	settler.On("Reject", mock.Anything, "corr-2", "platform down").Return(nil)

	d := newDispatcher(live, settler)
	d.Handle(context.Background(), models.WorkerCommand{
		Type:          models.WorkerCmdUserList,
		CorrelationID: "corr-2",
	})

	settler.AssertExpectations(t)
	settler.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_UserListWithoutCorrelationIsDropped(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	d := newDispatcher(live, settler)

	d.Handle(context.Background(), models.WorkerCommand{Type: models.WorkerCmdUserList})

	live.AssertNotCalled(t, "Users", mock.Anything)
}

func TestHandle_UnknownTypeIsDropped(t *testing.T) {
	live, settler := new(MockLive), new(MockSettler)
	d := newDispatcher(live, settler)

	d.Handle(context.Background(), models.WorkerCommand{Type: "teleport"})

	live.AssertNotCalled(t, "Users", mock.Anything)
	live.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}
