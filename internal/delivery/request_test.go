package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixchat/internal/apperr"
)

func TestParseFrame(t *testing.T) {
	fields, action, err := parseFrame([]byte(`{"action":"search_new","user_id":42}`))
	require.Nil(t, err)
	assert.Equal(t, "search_new", action)
	assert.Equal(t, int64(42), fields.Int("user_id"))

	_, _, err = parseFrame([]byte("  {\"action\":\"search_new\"}\n"))
	assert.Nil(t, err, "surrounding whitespace is allowed")
}

func TestParseFrame_TrailingData(t *testing.T) {
	for _, frame := range []string{
		`{"action":"search_new","user_id":42,"key":"k"} garbage`,
		`{"action":"search_new"}{"action":"search_new"}`,
		`{"action":"search_new"} 1`,
		`{"action":"search_new"}]`,
	} {
		_, _, err := parseFrame([]byte(frame))
		require.NotNil(t, err, frame)
		assert.Equal(t, apperr.KindInvalidPayload, err.Kind, frame)
		assert.Equal(t, invalidPayloadMsg, err.Message, frame)
	}
}

func TestFields_Int(t *testing.T) {
	f := mustFields(t, `{"a":42,"b":"17","c":"9abc","d":3.9,"e":true,"f":"abc","g":null,"h":[1],"i":" 8 "}`)

	assert.Equal(t, int64(42), f.Int("a"))
	assert.Equal(t, int64(17), f.Int("b"))
	assert.Equal(t, int64(9), f.Int("c"))
	assert.Equal(t, int64(3), f.Int("d"))
	assert.Equal(t, int64(1), f.Int("e"))
	assert.Equal(t, int64(0), f.Int("f"))
	assert.Equal(t, int64(0), f.Int("g"))
	assert.Equal(t, int64(0), f.Int("h"))
	assert.Equal(t, int64(8), f.Int("i"))
	assert.Equal(t, int64(0), f.Int("missing"))
}

func TestFields_String(t *testing.T) {
	f := mustFields(t, `{"a":"  room1 ","b":123,"c":{"x":1},"d":""}`)

	assert.Equal(t, "room1", f.String("a"))
	assert.Equal(t, "123", f.String("b"))
	assert.Equal(t, "", f.String("c"))
	assert.Equal(t, "", f.String("d"))
}

func TestFields_Bool(t *testing.T) {
	f := mustFields(t, `{"t":true,"one":1,"s":"yes","f":false,"z":0,"zs":"0","e":"","n":null,"arr":[]}`)

	for _, k := range []string{"t", "one", "s"} {
		assert.True(t, f.Bool(k), k)
	}
	for _, k := range []string{"f", "z", "zs", "e", "n", "arr", "missing"} {
		assert.False(t, f.Bool(k), k)
	}
}

func TestDecodeSearchNew(t *testing.T) {
	req, err := decodeSearchNew(mustFields(t, `{"user_id":42,"key":" abc123 ","convo_key":" room1 ","mark_read":true}`))
	require.Nil(t, err)
	assert.Equal(t, &InboundRequest{Action: ActionSearchNew, UserID: 42, Key: "abc123", ConvoKey: "room1", MarkRead: true}, req)

	_, err = decodeSearchNew(mustFields(t, `{"user_id":42,"key":""}`))
	require.NotNil(t, err)
	assert.Equal(t, "missing_credentials", string(err.Kind))
}

func mustFields(t *testing.T, s string) Fields {
	t.Helper()
	f, _, err := parseFrame([]byte(`{"action":"x",` + s[1:]))
	require.Nil(t, err)
	return f
}
