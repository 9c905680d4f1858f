package catalog

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint32
		wantErr bool
	}{
		{name: "upper case", input: "5FE83BB4", want: 0x5FE83BB4},
		{name: "lower case", input: "deadbeef", want: 0xDEADBEEF},
		{name: "zero", input: "00000000", want: 0},
		{name: "max", input: "FFFFFFFF", want: 0xFFFFFFFF},
		{name: "sentinel", input: SentinelTag, want: 1},
		{name: "too short", input: "ABC", wantErr: true},
		{name: "too long", input: "123456789", wantErr: true},
		{name: "not hex", input: "GGGGGGGG", wantErr: true},
		{name: "sign", input: "+1234567", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.input)
			if tt.wantErr {
				assert.IsError(t, err, ErrBadTag)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsStaleMatchesIntegerOrder(t *testing.T) {
	tags := []string{"00000000", "00000001", "0000000f", "0000000F", "5FE83BB4", "7fffffff", "80000000", "DEADBEEF", "FFFFFFFF"}
	for _, a := range tags {
		for _, b := range tags {
			va, _ := ParseTag(a)
			vb, _ := ParseTag(b)
			assert.Equal(t, va < vb, IsStale(a, b), "IsStale(%s, %s)", a, b)
		}
	}
}

func TestIsStaleMalformedNeverStale(t *testing.T) {
	assert.False(t, IsStale("zzzzzzzz", "FFFFFFFF"))
	assert.False(t, IsStale("", "FFFFFFFF"))
	assert.False(t, IsStale("00000000", "not-a-tag"))
	assert.False(t, IsStale("1", "FFFFFFFF"))
}

func TestSameTag(t *testing.T) {
	assert.True(t, SameTag("deadbeef", "DEADBEEF"))
	assert.False(t, SameTag("DEADBEEF", "DEADBEEE"))
}
