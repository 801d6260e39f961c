package xrayradar

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextStoreLastWriteWins(t *testing.T) {
	store := NewContextStore("host", "1.0.0", "production")
	store.SetTag("region", "eu")
	store.SetTag("region", "us")
	store.SetExtra("attempt", 1)
	store.SetExtra("attempt", 2)
	store.SetUser(User{ID: "1"})
	store.SetUser(User{ID: "2", Email: "two@example.com"})

	snapshot := store.Snapshot()
	assert.Equal(t, map[string]string{"region": "us"}, snapshot.Tags)
	assert.Equal(t, map[string]interface{}{"attempt": 2}, snapshot.Extra)
	assert.Equal(t, User{ID: "2", Email: "two@example.com"}, snapshot.User)
	assert.Equal(t, "host", snapshot.ServerName)
	assert.Equal(t, "1.0.0", snapshot.Release)
	assert.Equal(t, "production", snapshot.Environment)
}

func TestContextStoreSetTagsAndExtras(t *testing.T) {
	store := NewContextStore("", "", "")
	store.SetTags(map[string]string{"a": "1", "b": "2"})
	store.SetTags(map[string]string{"b": "3"})
	store.SetExtras(map[string]interface{}{"x": true})
	store.RemoveTag("a")
	store.RemoveExtra("missing")

	snapshot := store.Snapshot()
	assert.Equal(t, map[string]string{"b": "3"}, snapshot.Tags)
	assert.Equal(t, map[string]interface{}{"x": true}, snapshot.Extra)
}

func TestContextStoreSetContextMerges(t *testing.T) {
	store := NewContextStore("", "", "")
	store.SetContext("app", map[string]interface{}{"name": "shop", "build": 1})
	store.SetContext("app", map[string]interface{}{"build": 2})
	store.SetContext("db", map[string]interface{}{"engine": "sqlite"})
	store.RemoveContext("db")

	snapshot := store.Snapshot()
	assert.Equal(t, map[string]map[string]interface{}{
		"app": {"name": "shop", "build": 2},
	}, snapshot.Contexts)
}

func TestContextStoreSnapshotIsIndependent(t *testing.T) {
	store := NewContextStore("", "", "")
	store.SetTag("k", "v")
	store.SetExtra("nested", map[string]interface{}{"inner": "value"})
	store.SetContext("app", map[string]interface{}{"name": "shop"})
	store.SetRequest(&Request{URL: "http://example.com", Headers: map[string]string{"Accept": "*/*"}})

	snapshot := store.Snapshot()
	snapshot.Tags["k"] = "mutated"
	snapshot.Extra["nested"].(map[string]interface{})["inner"] = "mutated"
	snapshot.Contexts["app"]["name"] = "mutated"
	snapshot.Request.Headers["Accept"] = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, "v", fresh.Tags["k"])
	assert.Equal(t, "value", fresh.Extra["nested"].(map[string]interface{})["inner"])
	assert.Equal(t, "shop", fresh.Contexts["app"]["name"])
	assert.Equal(t, "*/*", fresh.Request.Headers["Accept"])
}

func TestContextStoreClearKeepsImmutableFields(t *testing.T) {
	store := NewContextStore("host", "1.0.0", "staging")
	store.SetTag("k", "v")
	store.SetUser(User{ID: "1"})
	store.SetRequest(&Request{URL: "http://example.com"})
	store.Clear()

	snapshot := store.Snapshot()
	assert.Empty(t, snapshot.Tags)
	assert.Empty(t, snapshot.Extra)
	assert.Empty(t, snapshot.Contexts)
	assert.True(t, snapshot.User.IsEmpty())
	assert.Nil(t, snapshot.Request)
	assert.Equal(t, "host", snapshot.ServerName)
	assert.Equal(t, "staging", snapshot.Environment)
}

func TestContextStoreConcurrentAccess(t *testing.T) {
	store := NewContextStore("", "", "")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			store.SetTag("tag", "value")
		}()
		go func() {
			defer wg.Done()
			store.SetContext("ctx", map[string]interface{}{"k": "v"})
		}()
		go func() {
			defer wg.Done()
			_ = store.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, "value", store.Snapshot().Tags["tag"])
}
