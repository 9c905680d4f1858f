package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "builds"), "7z")
	assert.NoError(t, err)
	return store
}

func TestParseFileName(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "canonical", input: "build5FE83BB4.7z", want: "5FE83BB4"},
		{name: "lower case tag", input: "builddeadbeef.7z", want: "deadbeef"},
		{name: "upper case ext", input: "buildDEADBEEF.7Z", want: "DEADBEEF"},
		{name: "wrong ext", input: "buildDEADBEEF.zip", wantErr: true},
		{name: "wrong prefix", input: "bundleDEADBEEF.7z", wantErr: true},
		{name: "short tag", input: "buildDEAD.7z", wantErr: true},
		{name: "non hex tag", input: "buildDEADBEEG.7z", wantErr: true},
		{name: "path", input: "../buildDEADBEEF.7z", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ParseFileName(tt.input)
			if tt.wantErr {
				assert.IsError(t, err, ErrBadFilename)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	store, err := New(t.TempDir(), ".ext")
	assert.NoError(t, err)
	assert.Equal(t, "buildDEADBEEF.ext", store.FileName("DEADBEEF"))

	tag, err := store.ParseFileName(store.FileName("DEADBEEF"))
	assert.NoError(t, err)
	assert.Equal(t, "DEADBEEF", tag)
}

func TestPublishRenamesTempFile(t *testing.T) {
	store := newTestStore(t)

	tmp, err := store.CreateTemp()
	assert.NoError(t, err)
	_, err = tmp.Write([]byte("payload"))
	assert.NoError(t, err)

	path, err := store.Publish(tmp, "0000ABCD")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "build0000ABCD.7z"), path)
	assert.True(t, store.Exists("0000ABCD"))

	_, err = os.Stat(tmp.Name())
	assert.True(t, os.IsNotExist(err))

	file, size, err := store.Open("0000ABCD")
	assert.NoError(t, err)
	defer file.Close()
	assert.Equal(t, int64(len("payload")), size)
}

func TestDiscardRemovesTempFile(t *testing.T) {
	store := newTestStore(t)

	tmp, err := store.CreateTemp()
	assert.NoError(t, err)
	store.Discard(tmp)

	entries, err := os.ReadDir(store.Dir())
	assert.NoError(t, err)
	assert.Equal(t, 0, len(entries))
}

func TestSweepRemovesOnlyTempFiles(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		tmp, err := store.CreateTemp()
		assert.NoError(t, err)
		tmp.Close()
	}
	assert.NoError(t, os.WriteFile(store.Path("00000001"), []byte("x"), 0644))

	swept, err := store.Sweep()
	assert.NoError(t, err)
	assert.Equal(t, 3, swept)

	entries, err := os.ReadDir(store.Dir())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
	assert.Equal(t, "build00000001.7z", entries[0].Name())
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Remove("00000001"))
	assert.False(t, store.Exists("00000001"))
}
