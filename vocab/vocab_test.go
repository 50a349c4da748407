package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureValues() map[string]int64 {
	return map[string]int64{
		"t": 0, "h": 1, "a@@": 2, "n": 3, "the": 4,
		"Ġ": 5, "<|endoftext|>": 6, "o@@": 7, "Ġear": 8, "th": 9,
	}
}

func TestNewRequiresUnknownPresent(t *testing.T) {
	_, err := New(map[string]int64{"a": 0}, nil, "<|endoftext|>")
	require.Error(t, err)
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
}

func TestNewRejectsEmptyUnknown(t *testing.T) {
	_, err := New(map[string]int64{"a": 0}, nil, "")
	require.Error(t, err)
}

func TestNewRejectsUnregisteredSpecial(t *testing.T) {
	values := fixtureValues()
	_, err := New(values, []string{"<|pad|>"}, "<|endoftext|>")
	require.Error(t, err)
}

func TestTokenToIDTotal(t *testing.T) {
	v, err := New(fixtureValues(), nil, "<|endoftext|>")
	require.NoError(t, err)

	assert.EqualValues(t, 4, v.TokenToID("the"))
	assert.EqualValues(t, 6, v.TokenToID("never-seen-symbol"))
}

func TestIDToTokenTotal(t *testing.T) {
	v, err := New(fixtureValues(), nil, "<|endoftext|>")
	require.NoError(t, err)

	assert.Equal(t, "the", v.IDToToken(4))
	assert.Equal(t, "<|endoftext|>", v.IDToToken(999))
}

func TestIsSpecial(t *testing.T) {
	v, err := New(fixtureValues(), nil, "<|endoftext|>")
	require.NoError(t, err)

	assert.True(t, v.IsSpecial("<|endoftext|>"))
	assert.False(t, v.IsSpecial("the"))
}

func TestLoadBytes(t *testing.T) {
	data := []byte(`{"a": 0, "b": 1, "<|endoftext|>": 2}`)
	v, err := LoadBytes(data, nil, "<|endoftext|>")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.TokenToID("<|endoftext|>"))
	assert.Equal(t, 3, v.Size())
}

func TestLoadBytesInvalidJSON(t *testing.T) {
	_, err := LoadBytes([]byte("not json"), nil, "<|endoftext|>")
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/no/such/file/vocab.json", nil, "<|endoftext|>")
	require.Error(t, err)
}
