package xrayradar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageFunctionsWithoutTracker(t *testing.T) {
	Close()

	assert.Nil(t, CurrentTracker())
	assert.NotPanics(t, func() {
		assert.Nil(t, CaptureException(errors.New("nobody listens")))
		assert.Nil(t, CaptureMessage("nobody listens"))
		AddBreadcrumb(&Breadcrumb{Message: "b"})
		ClearBreadcrumbs()
		SetUser(User{ID: "1"})
		SetTag("k", "v")
		SetExtra("k", "v")
		SetContext("app", map[string]interface{}{"name": "shop"})
		assert.True(t, Flush(time.Millisecond))
		assert.True(t, FlushWithContext(context.Background()))
	})
}

func TestInitInstallsTracker(t *testing.T) {
	clearEnv(t)
	transport := &MockTransport{}
	tracker, err := Init(ClientOptions{Transport: transport, DisableModules: true})
	require.NoError(t, err)
	defer Close()

	assert.Same(t, tracker, CurrentTracker())

	SetTag("via", "package")
	AddBreadcrumb(&Breadcrumb{Message: "step"})
	id := CaptureMessage("hello")
	require.NotNil(t, id)

	event := transport.LastEvent()
	assert.Equal(t, "package", event.Tags["via"])
	require.Len(t, event.Breadcrumbs, 1)
	assert.Equal(t, "step", event.Breadcrumbs[0].Message)
}

func TestInitReplacesAndClosesPrevious(t *testing.T) {
	clearEnv(t)
	first := &MockTransport{}
	previous, err := Init(ClientOptions{Transport: first})
	require.NoError(t, err)

	second := &MockTransport{}
	current, err := Init(ClientOptions{Transport: second})
	require.NoError(t, err)
	defer Close()

	assert.True(t, previous.Closed())
	assert.True(t, first.IsClosed())
	assert.Same(t, current, CurrentTracker())
}

type closeObservingTransport struct {
	MockTransport
	currentAtClose *Tracker
}

func (t *closeObservingTransport) Close() {
	t.currentAtClose = CurrentTracker()
	t.MockTransport.Close()
}

func TestInitClosesPreviousBeforeInstalling(t *testing.T) {
	clearEnv(t)
	first := &closeObservingTransport{}
	previous, err := Init(ClientOptions{Transport: first})
	require.NoError(t, err)

	current, err := Init(ClientOptions{Transport: &MockTransport{}})
	require.NoError(t, err)
	defer Close()

	assert.True(t, previous.Closed())
	assert.True(t, first.IsClosed())
	assert.Nil(t, first.currentAtClose)
	assert.Same(t, current, CurrentTracker())
}

func TestInitErrorKeepsPrevious(t *testing.T) {
	clearEnv(t)
	tracker, err := Init(ClientOptions{Transport: &MockTransport{}})
	require.NoError(t, err)
	defer Close()

	_, err = Init(ClientOptions{SampleRate: 2})
	require.Error(t, err)
	assert.Same(t, tracker, CurrentTracker())
	assert.False(t, tracker.Closed())
}

func TestPackageRecover(t *testing.T) {
	clearEnv(t)
	transport := &MockTransport{}
	_, err := Init(ClientOptions{Transport: transport})
	require.NoError(t, err)
	defer Close()

	func() {
		defer Recover()
		panic(errors.New("handler exploded"))
	}()

	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, LevelFatal, event.Level)
	assert.Equal(t, "handler exploded", event.Message)
}

func TestCloseUninstalls(t *testing.T) {
	clearEnv(t)
	tracker, err := Init(ClientOptions{Transport: &MockTransport{}})
	require.NoError(t, err)

	Close()
	assert.Nil(t, CurrentTracker())
	assert.True(t, tracker.Closed())
	assert.Nil(t, CaptureMessage("after close"))
}
