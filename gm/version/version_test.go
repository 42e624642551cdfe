package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtLeast(t *testing.T) {
	cases := []struct {
		desc string
		v    Version
		req  Req
		want bool
	}{
		{"equal", New(2, 3, 0, 0), V(2, 3), true},
		{"minor above", New(2, 3, 0, 0), V(2, 2), true},
		{"minor below", New(2, 2, 0, 0), V(2, 3), false},
		{"major dominates minor", New(2022, 0, 0, 0), V(2, 3, 6), true},
		{"release counts", New(2, 3, 6, 0), V(2, 3, 7), false},
		{"build counts", New(2, 3, 6, 2), V(2, 3, 6, 1), true},
		{"2022 renumbering", New(2022, 8, 0, 0), V(2022, 5), true},
		{"branch ignored when numerics differ", Version{Major: 2022, Branch: PreLTS}, V(2, 3), true},
		{"branch tiebreak at equal numerics", Version{Major: 2022, Branch: PreLTS}, VB(PostLTS, 2022), false},
		{"lts satisfies lts", Version{Major: 2022, Branch: LTS}, VB(LTS, 2022), true},
		{"postlts satisfies lts", Version{Major: 2022, Branch: PostLTS}, VB(LTS, 2022), true},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.AtLeast(c.req))
		})
	}
}

func TestRaiseMonotone(t *testing.T) {
	v := New(2, 0, 0, 0)
	require.True(t, v.Raise(V(2, 3)))
	assert.Equal(t, New(2, 3, 0, 0), v)

	// raising to something already satisfied is a no-op
	require.False(t, v.Raise(V(2, 2, 9)))
	assert.Equal(t, New(2, 3, 0, 0), v)

	require.True(t, v.Raise(V(2022, 9)))
	assert.Equal(t, uint32(2022), v.Major)

	require.False(t, v.Raise(V(2, 3, 6)))
	assert.Equal(t, uint32(2022), v.Major)
}

func TestString(t *testing.T) {
	assert.Equal(t, "2023.2.0.71", New(2023, 2, 0, 71).String())
	assert.Equal(t, "pre-LTS", PreLTS.String())
	assert.Equal(t, "LTS", LTS.String())
	assert.Equal(t, "post-LTS", PostLTS.String())
}
