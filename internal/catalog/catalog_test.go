package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "versions.json"), nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{}, c.Versions())
}

func TestLoadDropsMalformedTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	err := os.WriteFile(path, []byte(`{"04rel006": "5FE83BB4", "broken": "xyz", "short": "123"}`), 0644)
	assert.NoError(t, err)

	c, err := Load(path, nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"04rel006": "5FE83BB4"}, c.Versions())
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestObserveRecordsOnce(t *testing.T) {
	c := New("", map[string]string{"known": "00000010"}, nil)

	assert.True(t, c.Observe("new"))
	assert.False(t, c.Observe("new"))
	assert.False(t, c.Observe("known"))
	assert.False(t, c.Observe(""))

	assert.Equal(t, []string{"new"}, c.Unknowns())
	assert.True(t, c.IsUnknown("new"))
	assert.False(t, c.IsUnknown("known"))
}

func TestOutboundAddsSentinelForUnknown(t *testing.T) {
	c := New("", map[string]string{"b": "00000002", "a": "00000003"}, nil)
	c.Observe("z")
	c.Observe("y")

	assert.Equal(t, []Entry{
		{Component: "a", Tag: "00000003"},
		{Component: "b", Tag: "00000002"},
		{Component: "y", Tag: SentinelTag},
		{Component: "z", Tag: SentinelTag},
	}, c.Outbound())
}

func TestInstallPersistsAndClearsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "versions.json")
	c := New(path, map[string]string{"04rel006": "5FE83BB4"}, nil)
	c.Observe("X")

	previous, err := c.Install("X", "DEADBEEF")
	assert.NoError(t, err)
	assert.Equal(t, "", previous)

	tag, ok := c.Get("X")
	assert.True(t, ok)
	assert.Equal(t, "DEADBEEF", tag)
	assert.False(t, c.IsUnknown("X"))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "{\n  \"04rel006\": \"5FE83BB4\",\n  \"X\": \"DEADBEEF\"\n}\n", string(data))

	reloaded, err := Load(path, nil)
	assert.NoError(t, err)
	assert.Equal(t, c.Versions(), reloaded.Versions())

	previous, err = c.Install("X", "DEADBEF0")
	assert.NoError(t, err)
	assert.Equal(t, "DEADBEEF", previous)
}

func TestInstallRejectsBadTag(t *testing.T) {
	c := New("", nil, nil)
	_, err := c.Install("X", "nothex!!")
	assert.IsError(t, err, ErrBadTag)
	_, ok := c.Get("X")
	assert.False(t, ok)
}

func TestReferences(t *testing.T) {
	c := New("", map[string]string{"a": "0000000A", "b": "0000000B"}, nil)
	assert.True(t, c.References("0000000a"))
	assert.False(t, c.References("0000000C"))
}

func TestConcurrentInstallsAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	c := New(path, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			component := fmt.Sprintf("component%02d", i)
			c.Observe(component)
			_, err := c.Install(component, fmt.Sprintf("%08X", i+1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, len(c.Versions()))
	assert.Equal(t, 0, len(c.Unknowns()))

	reloaded, err := Load(path, nil)
	assert.NoError(t, err)
	assert.Equal(t, c.Versions(), reloaded.Versions())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n"))
}
