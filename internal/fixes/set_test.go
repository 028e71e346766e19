package fixes

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_AddRemove(t *testing.T) {
	t.Parallel()

	s := NewSet(nil)

	replaced, err := s.Add(Fix{ID: 7, Extension: "hotfix_a"})
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = s.Add(Fix{ID: 7, Extension: "hotfix_b"})
	require.NoError(t, err)
	assert.True(t, replaced, "second add with the same ID overwrites")

	fix, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, "hotfix_b", fix.Extension)
	assert.Equal(t, 1, s.Len())

	removed, err := s.Remove(7)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(7)
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent ID is a no-op")
	assert.Zero(t, s.Len())
}

func TestSet_ZeroValue(t *testing.T) {
	t.Parallel()

	var s Set
	_, err := s.Add(Fix{ID: 1, Extension: "x"})
	require.NoError(t, err)
	assert.Equal(t, []Fix{{ID: 1, Extension: "x"}}, s.List())
}

func TestSet_ListOrderedByID(t *testing.T) {
	t.Parallel()

	s := NewSet(nil)
	for _, id := range []int{9, 2, 5} {
		_, err := s.Add(Fix{ID: id, Extension: "ext"})
		require.NoError(t, err)
	}

	want := []Fix{{2, "ext"}, {5, "ext"}, {9, "ext"}}
	if diff := cmp.Diff(want, s.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

// The set after a command sequence equals in-order application of the
// same sequence to a plain map.
func TestSet_SequenceMatchesModel(t *testing.T) {
	t.Parallel()

	type op struct {
		add bool
		fix Fix
	}
	ops := []op{
		{true, Fix{1, "a"}},
		{true, Fix{2, "b"}},
		{false, Fix{ID: 1}},
		{false, Fix{ID: 1}},
		{true, Fix{2, "c"}},
		{false, Fix{ID: 42}},
		{true, Fix{3, "d"}},
		{true, Fix{1, "e"}},
		{false, Fix{ID: 3}},
	}

	s := NewSet(nil)
	model := map[int]string{}
	for _, o := range ops {
		if o.add {
			_, err := s.Add(o.fix)
			require.NoError(t, err)
			model[o.fix.ID] = o.fix.Extension
		} else {
			_, err := s.Remove(o.fix.ID)
			require.NoError(t, err)
			delete(model, o.fix.ID)
		}
	}

	var want []Fix
	for id, ext := range model {
		want = append(want, Fix{ID: id, Extension: ext})
	}
	less := func(a, b Fix) bool { return a.ID < b.ID }
	if diff := cmp.Diff(want, s.List(), cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("set diverged from model (-want +got):\n%s", diff)
	}
}

type recordingApplier struct {
	applied  []Fix
	reverted []Fix
	failOn   int
}

func (a *recordingApplier) Apply(fix Fix) error {
	if fix.ID == a.failOn {
		return errors.New("no slot for fix")
	}
	a.applied = append(a.applied, fix)
	return nil
}

func (a *recordingApplier) Revert(fix Fix) error {
	if fix.ID == a.failOn {
		return errors.New("threads still inside patched region")
	}
	a.reverted = append(a.reverted, fix)
	return nil
}

func TestSet_Applier(t *testing.T) {
	t.Parallel()

	applier := &recordingApplier{failOn: -1}
	s := NewSet(applier)

	_, err := s.Add(Fix{ID: 3, Extension: "lock_order"})
	require.NoError(t, err)
	_, err = s.Remove(3)
	require.NoError(t, err)
	_, err = s.Remove(3)
	require.NoError(t, err)

	assert.Equal(t, []Fix{{3, "lock_order"}}, applier.applied)
	assert.Equal(t, []Fix{{3, "lock_order"}}, applier.reverted, "revert is not called for absent IDs")
}

func TestSet_ApplierRefusalLeavesSetUnchanged(t *testing.T) {
	t.Parallel()

	applier := &recordingApplier{failOn: 4}
	s := NewSet(applier)

	_, err := s.Add(Fix{ID: 4, Extension: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply fix 4")
	assert.Zero(t, s.Len())

	// Install through a permissive set and then refuse the revert.
	s.applier = nil
	_, err = s.Add(Fix{ID: 4, Extension: "good"})
	require.NoError(t, err)
	s.applier = applier

	removed, err := s.Remove(4)
	require.Error(t, err)
	assert.False(t, removed)
	_, ok := s.Get(4)
	assert.True(t, ok)
}

func TestSet_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	s := NewSet(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = s.Add(Fix{ID: id, Extension: "x"})
			_ = s.List()
			_, _ = s.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
}

func TestFixString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "7\thotfix_a", Fix{ID: 7, Extension: "hotfix_a"}.String())
}
