package comic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/gateway"
	"github.com/Krisp140/sebi/internal/mocks"
	"github.com/Krisp140/sebi/internal/models"
	"github.com/Krisp140/sebi/internal/pipeline"
	"github.com/Krisp140/sebi/internal/session"
	"github.com/Krisp140/sebi/internal/story"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const storyJSON = `{"comics":[{"prompt":"p0","caption":"c0"},{"prompt":"p1","caption":"c1"},{"prompt":"p2","caption":"c2"}]}`

var imageOpts = gateway.ImageOptions{Steps: 8, Model: "schnell"}

// recordingSink записывает события в порядке поступления.
type recordingSink struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recordingSink) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) OnStoryReady(_ context.Context, s domain.Story) {
	r.add(fmt.Sprintf("story_ready:%d", len(s)))
}

func (r *recordingSink) OnPanelReady(_ context.Context, res domain.PanelResult) {
	r.add(fmt.Sprintf("panel_ready:%d:%s", res.Index, res.ImageURL))
}

func (r *recordingSink) OnStoryFailure(_ context.Context, err error) {
	r.add("story_failure")
	r.errs = append(r.errs, err)
}

func (r *recordingSink) OnPipelineFailure(_ context.Context, err error) {
	r.add("pipeline_failure")
	r.errs = append(r.errs, err)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.ComicEvent
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, ev domain.ComicEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingEmitter) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	text      *mocks.MockTextClient
	images    *mocks.MockImageClient
	store     *session.MemoryStore
	publisher *recordingEmitter
	service   *Service
}

func (s *ServiceSuite) SetupTest() {
	logger := zap.NewNop()
	s.text = mocks.NewMockTextClient(s.T())
	s.images = mocks.NewMockImageClient(s.T())
	s.store = session.NewMemoryStore(0)
	s.publisher = &recordingEmitter{}
	s.service = NewService(
		story.NewGenerator(s.text, 50, logger),
		pipeline.New(s.images, imageOpts, 1, logger),
		s.store,
		s.publisher,
		logger,
	)
}

func (s *ServiceSuite) TestGenerate_Success() {
	ctx := context.Background()
	s.text.On("GenerateStory", mock.Anything, story.SystemInstruction, "dog at sea").Return(storyJSON, nil).Once()
	for i := 0; i < 3; i++ {
		s.images.On("GenerateImage", mock.Anything, fmt.Sprintf("p%d", i), imageOpts).
			Return(fmt.Sprintf("https://img/%d", i), nil).Once()
	}

	sink := &recordingSink{}
	err := s.service.Generate(ctx, "sess-1", "dog at sea", sink)
	s.Require().NoError(err)

	s.Equal([]string{
		"story_ready:3",
		"panel_ready:0:https://img/0",
		"panel_ready:1:https://img/1",
		"panel_ready:2:https://img/2",
	}, sink.events)

	sess, err := s.service.Session(ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal(session.StatusReady, sess.Status)
	s.Equal("dog at sea", sess.Prompt)
	s.Len(sess.Panels, 3)
	s.Equal("https://img/2", sess.Panels[2].ImageURL)

	s.Equal([]domain.EventType{
		domain.EventStoryReady,
		domain.EventPanelReady,
		domain.EventPanelReady,
		domain.EventPanelReady,
		domain.EventCompleted,
	}, s.publisher.types())
	for _, ev := range s.publisher.events {
		s.Equal("sess-1", ev.SessionID)
	}

	s.text.AssertExpectations(s.T())
	s.images.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGenerate_MalformedStory() {
	ctx := context.Background()
	s.text.On("GenerateStory", mock.Anything, mock.Anything, mock.Anything).Return(`{"comics":[]}`, nil).Once()

	sink := &recordingSink{}
	err := s.service.Generate(ctx, "sess-2", "dog", sink)

	s.Require().Error(err)
	s.True(errors.Is(err, story.ErrMalformedStory))
	s.Equal([]string{"story_failure"}, sink.events)
	s.images.AssertNotCalled(s.T(), "GenerateImage", mock.Anything, mock.Anything, mock.Anything)

	sess, err := s.service.Session(ctx, "sess-2")
	s.Require().NoError(err)
	s.Equal(session.StatusFailed, sess.Status)
	s.Equal(MsgNoStory, sess.Error)
	s.Empty(sess.Panels)

	s.Equal([]domain.EventType{domain.EventStoryFailure}, s.publisher.types())
	s.Equal(MsgNoStory, s.publisher.events[0].Message)
}

func (s *ServiceSuite) TestGenerate_UpstreamStoryFailure() {
	s.text.On("GenerateStory", mock.Anything, mock.Anything, mock.Anything).
		Return("", &gateway.UpstreamError{Provider: gateway.ProviderOpenAI, Status: 500}).Once()

	sink := &recordingSink{}
	err := s.service.Generate(context.Background(), "sess-3", "dog", sink)

	s.True(errors.Is(err, gateway.ErrUpstream))
	s.Equal([]string{"story_failure"}, sink.events)
	s.Equal(MsgStoryFailed, s.publisher.events[0].Message)
}

func (s *ServiceSuite) TestGenerate_PipelineFailureKeepsDeliveredPanels() {
	ctx := context.Background()
	s.text.On("GenerateStory", mock.Anything, mock.Anything, mock.Anything).Return(storyJSON, nil).Once()
	s.images.On("GenerateImage", mock.Anything, "p0", imageOpts).Return("https://img/0", nil).Once()
	s.images.On("GenerateImage", mock.Anything, "p1", imageOpts).
		Return("", &gateway.UpstreamError{Provider: gateway.ProviderReplicate, Body: "prediction failed"}).Once()

	sink := &recordingSink{}
	err := s.service.Generate(ctx, "sess-4", "dog", sink)

	s.Require().Error(err)
	s.True(errors.Is(err, pipeline.ErrPipelineAborted))
	s.Equal([]string{"story_ready:3", "panel_ready:0:https://img/0", "pipeline_failure"}, sink.events)
	s.images.AssertNotCalled(s.T(), "GenerateImage", mock.Anything, "p2", mock.Anything)

	sess, err := s.service.Session(ctx, "sess-4")
	s.Require().NoError(err)
	s.Equal(session.StatusFailed, sess.Status)
	s.Equal(MsgImageFailed, sess.Error)
	s.Equal("https://img/0", sess.Panels[0].ImageURL)
	s.Empty(sess.Panels[1].ImageURL)

	last := s.publisher.events[len(s.publisher.events)-1]
	s.Equal(domain.EventPipelineFailure, last.Type)
	s.Require().NotNil(last.Index)
	s.Equal(1, *last.Index)
}

func (s *ServiceSuite) TestGenerate_BusySession() {
	ctx := context.Background()
	_, err := s.store.Acquire(ctx, "sess-5")
	s.Require().NoError(err)

	sink := &recordingSink{}
	err = s.service.Generate(ctx, "sess-5", "dog", sink)

	s.ErrorIs(err, models.ErrGenerationInProgress)
	s.Empty(sink.events)
	s.text.AssertNotCalled(s.T(), "GenerateStory", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGenerate_InvalidPromptRejectedBeforeSession() {
	ctx := context.Background()
	err := s.service.Generate(ctx, "sess-6", "   ", &recordingSink{})

	s.ErrorIs(err, story.ErrPromptRequired)
	_, loadErr := s.service.Session(ctx, "sess-6")
	s.ErrorIs(loadErr, session.ErrSessionNotFound)
}

func (s *ServiceSuite) TestGenerate_RerunStartsFresh() {
	ctx := context.Background()
	s.text.On("GenerateStory", mock.Anything, mock.Anything, mock.Anything).Return(storyJSON, nil).Twice()
	s.images.On("GenerateImage", mock.Anything, "p0", imageOpts).Return("", errors.New("boom")).Once()
	s.images.On("GenerateImage", mock.Anything, mock.Anything, imageOpts).Return("https://img/x", nil)

	s.Require().Error(s.service.Generate(ctx, "sess-7", "dog", nil))
	s.Require().NoError(s.service.Generate(ctx, "sess-7", "dog", nil))

	sess, err := s.service.Session(ctx, "sess-7")
	s.Require().NoError(err)
	s.Equal(session.StatusReady, sess.Status)
	s.Empty(sess.Error)
	s.Equal(3, sess.ReadyPanels())
}

func (s *ServiceSuite) TestGenerate_PublisherErrorsDoNotAbort() {
	s.publisher.err = errors.New("channel closed")
	s.text.On("GenerateStory", mock.Anything, mock.Anything, mock.Anything).Return(storyJSON, nil).Once()
	s.images.On("GenerateImage", mock.Anything, mock.Anything, imageOpts).Return("https://img/x", nil)

	s.NoError(s.service.Generate(context.Background(), "sess-8", "dog", nil))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgPromptRequired, UserMessage(story.ErrPromptRequired))
	assert.Equal(t, MsgPromptInvalid, UserMessage(fmt.Errorf("%w: too long", story.ErrInvalidPrompt)))
	assert.Equal(t, MsgNoStory, UserMessage(story.ErrEmptyStory))
	assert.Equal(t, MsgNoStory, UserMessage(fmt.Errorf("%w: missing comics", story.ErrMalformedStory)))
	assert.Equal(t, MsgStoryFailed, UserMessage(fmt.Errorf("%w: eof", story.ErrInvalidStoryJSON)))
	assert.Equal(t, MsgImageFailed, UserMessage(&pipeline.AbortError{Index: 1, Err: errors.New("x")}))
	assert.Equal(t, MsgAlreadyGenerating, UserMessage(models.ErrGenerationInProgress))
	assert.Equal(t, MsgStoryFailed, UserMessage(&gateway.UpstreamError{Provider: "openai"}))
}

func TestEventSink_PanelReadyCarriesIndexAndPanel(t *testing.T) {
	em := &recordingEmitter{}
	sink := NewEventSink("s", em, zap.NewNop())

	sink.OnPanelReady(context.Background(), domain.PanelResult{Index: 2, Panel: domain.PanelDescriptor{Prompt: "p", Caption: "c"}, ImageURL: "u"})

	require.Len(t, em.events, 1)
	ev := em.events[0]
	assert.Equal(t, domain.EventPanelReady, ev.Type)
	require.NotNil(t, ev.Index)
	assert.Equal(t, 2, *ev.Index)
	assert.Equal(t, "c", ev.Panel.Caption)
	assert.Equal(t, "u", ev.ImageURL)
	assert.False(t, ev.Timestamp.IsZero())
}
