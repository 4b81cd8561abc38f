package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keytap/keytap/pkg/combo"
)

func held(names ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, name := range names {
		out[name] = struct{}{}
	}

	return out
}

func TestComboSetAddRemove(t *testing.T) {
	set := newComboSet()

	require.NoError(t, set.add("hk-1", []string{"K"}, []string{"Ctrl", "shift"}))
	require.NoError(t, set.add("hk-2", []string{"j"}, nil))
	assert.Equal(t, 2, set.size())
	assert.Equal(t, []string{"hk-1", "hk-2"}, set.ids())

	//same combination under another id is allowed
	require.NoError(t, set.add("hk-3", []string{"k"}, []string{"control", "shift"}))

	assert.ErrorIs(t, set.add("hk-1", []string{"x"}, nil), ErrDuplicateHotkey)
	assert.ErrorIs(t, set.add("hk-4", nil, nil), combo.ErrNoKey)
	assert.ErrorIs(t, set.add("hk-4", []string{"x"}, []string{"hyper"}), combo.ErrUnknownModifier)

	require.NoError(t, set.remove("hk-2"))
	assert.Equal(t, []string{"hk-1", "hk-3"}, set.ids())
	assert.ErrorIs(t, set.remove("hk-2"), ErrUnknownHotkey)
}

func TestComboSetMatch(t *testing.T) {
	set := newComboSet()
	require.NoError(t, set.add("hk-1", []string{"k"}, []string{"control", "shift"}))
	require.NoError(t, set.add("hk-2", []string{"k"}, nil))
	require.NoError(t, set.add("hk-3", []string{"a", "b"}, nil))

	//a bare key press completes only the unmodified combination
	assert.Equal(t, []string{"hk-2"}, set.match("k", held("k"), held()))

	//all modifiers held completes both k combinations in insertion order
	assert.Equal(t, []string{"hk-1", "hk-2"}, set.match("k", held("k"), held("control", "shift")))

	//extra held modifiers do not prevent a match
	assert.Equal(t, []string{"hk-1", "hk-2"}, set.match("k", held("k"), held("control", "shift", "option")))

	//multi key chords need the other keys held
	assert.Empty(t, set.match("b", held("b"), held()))
	assert.Equal(t, []string{"hk-3"}, set.match("b", held("a", "b"), held()))

	assert.Empty(t, set.match("z", held("z"), held("control", "shift")))
}
