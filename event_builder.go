package xrayradar

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// EventHint carries the call-site inputs of a capture.
type EventHint struct {
	// OriginalException is the captured error, if any.
	OriginalException error
	// RecoveredException is a recovered panic value that is not an error.
	RecoveredException interface{}
	Message            string
	Level              Level
	Logger             string
	Extra              map[string]interface{}
	Tags               map[string]string
	Request            *Request
	User               *User
	Fingerprint        []string
	// Locals are attached to the culprit frame when SendDefaultPII is set.
	Locals  map[string]interface{}
	Context context.Context

	fromPanic bool
}

// EventBuilder turns a capture into an Event. It does not touch shared
// state and is safe for concurrent use.
type EventBuilder struct {
	sendDefaultPII bool
	maxErrorDepth  int
	isSDKFrame     FrameMatcher
	attachModules  bool
	sdk            SdkInfo
}

// NewEventBuilder returns a builder for resolved options.
func NewEventBuilder(options ClientOptions) *EventBuilder {
	isSDK := options.FrameMatcher
	if isSDK == nil {
		isSDK = IsSDKFrame
	}
	depth := options.MaxErrorDepth
	if depth <= 0 {
		depth = defaultMaxErrorDepth
	}
	integrations := []string{integrationEnvironment, integrationRequest}
	if !options.DisableModules {
		integrations = append(integrations, integrationModules)
	}
	return &EventBuilder{
		sendDefaultPII: options.SendDefaultPII,
		maxErrorDepth:  depth,
		isSDKFrame:     isSDK,
		attachModules:  !options.DisableModules,
		sdk: SdkInfo{
			Name:         SDKName,
			Version:      SDKVersion,
			Integrations: integrations,
		},
	}
}

// Build assembles an event from hint and the given snapshots. Call-site
// tags and extra win over the snapshot on key conflicts.
func (b *EventBuilder) Build(hint *EventHint, ctx Context, breadcrumbs []*Breadcrumb) *Event {
	if hint == nil {
		hint = &EventHint{}
	}
	level := hint.Level
	if level == "" {
		level = LevelInfo
	}

	event := &Event{
		EventID:     NewEventID(),
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     hint.Message,
		Logger:      hint.Logger,
		Platform:    platform,
		Sdk:         b.sdk,
		ServerName:  ctx.ServerName,
		Release:     ctx.Release,
		Environment: ctx.Environment,
		Tags:        mergeTags(ctx.Tags, hint.Tags),
		Extra:       mergeExtra(ctx.Extra, hint.Extra),
		Contexts:    mergeContexts(defaultContexts(), ctx.Contexts),
		Breadcrumbs: breadcrumbs,
	}
	if b.attachModules {
		event.Modules = loadedModules()
	}

	request := ctx.Request
	if hint.Request != nil {
		request = hint.Request
	}
	event.Request = redactRequest(request, b.sendDefaultPII)

	user := ctx.User
	if hint.User != nil {
		user = *hint.User
	}
	if b.sendDefaultPII && user.IPAddress == "" && request != nil {
		user.IPAddress = request.Env["REMOTE_ADDR"]
	}
	event.User = redactUser(user, b.sendDefaultPII)

	switch {
	case hint.OriginalException != nil:
		event.Exception = b.exceptionsFromError(hint.OriginalException, hint.fromPanic)
	case hint.RecoveredException != nil:
		event.Exception = []Exception{{
			Type:       "panic",
			Value:      fmt.Sprint(hint.RecoveredException),
			Stacktrace: newStacktrace(b.isSDKFrame, hint.fromPanic),
		}}
	}

	var top *Exception
	if len(event.Exception) > 0 {
		top = &event.Exception[0]
		if event.Message == "" {
			event.Message = top.Value
		}
	}

	b.applyLocals(top, hint.Locals)

	if len(hint.Fingerprint) > 0 {
		event.Fingerprint = append([]string(nil), hint.Fingerprint...)
	} else {
		event.Fingerprint = Fingerprint(top, event.Message, b.isSDKFrame)
	}

	return event
}

func (b *EventBuilder) exceptionsFromError(err error, fromPanic bool) []Exception {
	var exceptions []Exception
	for depth := 0; err != nil && depth < b.maxErrorDepth; depth++ {
		exceptions = append(exceptions, Exception{
			Type:       reflect.TypeOf(err).String(),
			Value:      err.Error(),
			Module:     errorModule(err),
			Stacktrace: ExtractStacktrace(err),
		})
		err = unwrapCause(err)
	}
	if len(exceptions) > 0 && exceptions[0].Stacktrace == nil {
		exceptions[0].Stacktrace = newStacktrace(b.isSDKFrame, fromPanic)
	}
	return exceptions
}

// applyLocals attaches locals to the culprit frame when PII is allowed and
// strips every frame's variables otherwise.
func (b *EventBuilder) applyLocals(top *Exception, locals map[string]interface{}) {
	if top == nil {
		return
	}
	if !b.sendDefaultPII {
		if top.Stacktrace != nil {
			for i := range top.Stacktrace.Frames {
				top.Stacktrace.Frames[i].Vars = nil
			}
		}
		return
	}
	if len(locals) == 0 {
		return
	}
	if frame := culpritFrame(top.Stacktrace, b.isSDKFrame); frame != nil {
		frame.Vars = cloneMap(locals)
	}
}

// unwrapCause follows the standard Unwrap chain and falls back to the Cause
// method used by github.com/pkg/errors and github.com/pingcap/errors.
func unwrapCause(err error) error {
	if next := errors.Unwrap(err); next != nil {
		return next
	}
	if causer, ok := err.(interface{ Cause() error }); ok {
		if cause := causer.Cause(); cause != nil && cause != err {
			return cause
		}
	}
	return nil
}

func errorModule(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}

func mergeTags(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeExtra(base, override map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = cloneValue(v)
	}
	return out
}

func mergeContexts(base, override map[string]map[string]interface{}) map[string]map[string]interface{} {
	out := base
	if out == nil {
		out = make(map[string]map[string]interface{}, len(override))
	}
	for kind, fields := range override {
		merged, ok := out[kind]
		if !ok {
			merged = make(map[string]interface{}, len(fields))
			out[kind] = merged
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	return out
}
