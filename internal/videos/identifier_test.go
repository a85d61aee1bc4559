package videos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIDAcceptedShapes(t *testing.T) {
	const want = "dQw4w9WgXcQ"

	inputs := []string{
		"dQw4w9WgXcQ",
		"  dQw4w9WgXcQ\n",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL123",
		"http://m.youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
		"www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abcdef",
		"youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?autoplay=1",
		"HTTPS://WWW.YOUTUBE.COM/watch?v=dQw4w9WgXcQ",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			id, ok := ExtractID(input)
			require.True(t, ok)
			assert.Equal(t, want, id.String())
		})
	}
}

func TestExtractIDRejects(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"dQw4w9WgXc",
		"dQw4w9WgXcQQ",
		"dQw4w9WgXc!",
		"https://vimeo.com/123",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://example.com/dQw4w9WgXcQ",
		"https://evil.youtu.be.example.com/dQw4w9WgXcQ",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/dQw4w9WgXcQ",
		"https://youtu.be/",
		"://",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, ok := ExtractID(input)
			assert.False(t, ok)
		})
	}
}

func TestExtractIDPreservesCase(t *testing.T) {
	lower, ok := ExtractID("https://youtu.be/abcdefghijk")
	require.True(t, ok)
	upper, ok := ExtractID("https://youtu.be/ABCDEFGHIJK")
	require.True(t, ok)

	assert.Equal(t, "abcdefghijk", lower.String())
	assert.Equal(t, "ABCDEFGHIJK", upper.String())
	assert.NotEqual(t, lower, upper)
}

func TestExtractIDIsIdempotent(t *testing.T) {
	first, ok := ExtractID("https://www.youtube.com/watch?v=a_B-c1D2e3F&feature=youtu.be")
	require.True(t, ok)

	second, ok := ExtractID(first.String())
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestVideoIDText(t *testing.T) {
	id, ok := ParseVideoID("dQw4w9WgXcQ")
	require.True(t, ok)

	raw, err := json.Marshal(map[string]VideoID{"id": id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"dQw4w9WgXcQ"}`, string(raw))

	var decoded VideoID
	require.NoError(t, decoded.UnmarshalText([]byte("dQw4w9WgXcQ")))
	assert.Equal(t, id, decoded)

	err = decoded.UnmarshalText([]byte("https://youtu.be/dQw4w9WgXcQ"))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	assert.True(t, VideoID{}.IsZero())
}
