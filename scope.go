package xrayradar

import (
	"maps"
	"sync"
)

// Context is a point-in-time copy of a ContextStore.
type Context struct {
	Tags        map[string]string
	Extra       map[string]interface{}
	User        User
	Request     *Request
	Contexts    map[string]map[string]interface{}
	ServerName  string
	Release     string
	Environment string
}

// ContextStore holds the metadata attached to every event of a Tracker.
// Writes to an existing key replace the previous value. It is safe for
// concurrent use.
type ContextStore struct {
	mu       sync.RWMutex
	tags     map[string]string
	extra    map[string]interface{}
	user     User
	request  *Request
	contexts map[string]map[string]interface{}

	serverName  string
	release     string
	environment string
}

// NewContextStore returns an empty store with the given immutable fields.
func NewContextStore(serverName, release, environment string) *ContextStore {
	return &ContextStore{
		tags:        make(map[string]string),
		extra:       make(map[string]interface{}),
		contexts:    make(map[string]map[string]interface{}),
		serverName:  serverName,
		release:     release,
		environment: environment,
	}
}

func (s *ContextStore) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

func (s *ContextStore) SetTags(tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range tags {
		s.tags[k] = v
	}
}

func (s *ContextStore) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

func (s *ContextStore) SetExtra(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[key] = value
}

func (s *ContextStore) SetExtras(extra map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range extra {
		s.extra[k] = v
	}
}

func (s *ContextStore) RemoveExtra(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.extra, key)
}

// SetUser replaces the current user.
func (s *ContextStore) SetUser(user User) {
	user.Data = maps.Clone(user.Data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// SetRequest replaces the current request. A nil request clears it.
func (s *ContextStore) SetRequest(request *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request = cloneRequest(request)
}

// SetContext merges fields into the named context, key by key.
func (s *ContextStore) SetContext(kind string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[kind]
	if !ok {
		ctx = make(map[string]interface{}, len(fields))
		s.contexts[kind] = ctx
	}
	for k, v := range fields {
		ctx[k] = v
	}
}

// RemoveContext deletes the named context.
func (s *ContextStore) RemoveContext(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, kind)
}

// Clear drops tags, extra, user, request and contexts. The immutable fields
// are kept.
func (s *ContextStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = make(map[string]string)
	s.extra = make(map[string]interface{})
	s.contexts = make(map[string]map[string]interface{})
	s.user = User{}
	s.request = nil
}

// Snapshot returns an independent copy of the store.
func (s *ContextStore) Snapshot() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contexts := make(map[string]map[string]interface{}, len(s.contexts))
	for kind, fields := range s.contexts {
		contexts[kind] = cloneMap(fields)
	}
	user := s.user
	user.Data = maps.Clone(s.user.Data)

	return Context{
		Tags:        maps.Clone(s.tags),
		Extra:       cloneMap(s.extra),
		User:        user,
		Request:     cloneRequest(s.request),
		Contexts:    contexts,
		ServerName:  s.serverName,
		Release:     s.release,
		Environment: s.environment,
	}
}

func cloneRequest(r *Request) *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = maps.Clone(r.Headers)
	c.Env = maps.Clone(r.Env)
	return &c
}

// cloneMap copies m, descending into nested maps and slices of the shapes
// produced by JSON decoding. Other values are shared.
func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
