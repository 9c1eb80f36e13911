package docid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "raw trailing components",
			in:   "root%2Fgames%2FTestGame/Title/Title.png",
			want: "root%2Fgames%2FTestGame%2FTitle%2FTitle.png",
		},
		{
			name: "tree prefix left alone",
			in:   "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FTestGame/Title/Title.png",
			want: "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FTestGame%2FTitle%2FTitle.png",
		},
		{
			name: "already encoded",
			in:   "root%2Fgames%2FTestGame%2FTitle%2FTitle.png",
			want: "root%2Fgames%2FTestGame%2FTitle%2FTitle.png",
		},
		{
			name: "directory itself",
			in:   "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames",
			want: "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames",
		},
		{
			name: "reserved characters in raw part",
			in:   "root%2Fsave/Save 01:a.lsd",
			want: "root%2Fsave%2FSave%2001%3Aa.lsd",
		},
		{
			name: "trailing slash",
			in:   "root%2Fgames/",
			want: "root%2Fgames%2F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"root%2Fgames%2FTestGame/Title/Title.png",
		"primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FTestGame/Music/a b.ogg",
		"root%2Fgames",
		"root%2Fx/%25literal",
	}

	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err, in)
		twice, err := Normalize(once)
		require.NoError(t, err, in)
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalize_PrefixPreserved(t *testing.T) {
	in := "root%2Fgames%2FTestGame/Title/Title.png"
	prefix := "root%2Fgames%2FTestGame"

	got, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, prefix, got[:len(prefix)])
	assert.Equal(t, Encode("/Title/Title.png"), got[len(prefix):])
}

func TestNormalize_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"root/games/TestGame",
		"primary%3Aeasyrpg",
		// separator only in the tree segment
		"primary%3Aeasy%2Frpg/document/primary%3Aeasyrpg",
	} {
		_, err := Normalize(in)
		assert.True(t, errors.Is(err, ErrMalformedIdentifier), "input %q: %v", in, err)
	}
}

func TestSplit(t *testing.T) {
	parent, leaf, err := Split("primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FSave01%20copy.lsd")
	require.NoError(t, err)
	assert.Equal(t, "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames", parent)
	assert.Equal(t, "Save01 copy.lsd", leaf)

	assert.Equal(t, "primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FSave01%20copy.lsd", Child(parent, leaf))

	_, _, err = Split("noseparator")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestDocumentPath(t *testing.T) {
	p, err := DocumentPath("primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FTestGame")
	require.NoError(t, err)
	assert.Equal(t, "primary:easyrpg/games/TestGame", p)

	p, err = DocumentPath("root%2Fgames")
	require.NoError(t, err)
	assert.Equal(t, "root/games", p)

	_, err = DocumentPath("root%2Fbad%ZZ")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestTree(t *testing.T) {
	assert.Equal(t, "primary%3Aeasyrpg", Tree("primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames"))
	assert.Equal(t, "", Tree("root%2Fgames"))
}

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, "a-b_c.d~e!f'g(h)i*j", Encode("a-b_c.d~e!f'g(h)i*j"))
	assert.Equal(t, "%2F%3A%20%25%2B", Encode("/: %+"))
	assert.Equal(t, "%C3%A9", Encode("é"))

	s, err := Decode("%2F%3A%20%25+")
	require.NoError(t, err)
	assert.Equal(t, "/: %+", s)
}
