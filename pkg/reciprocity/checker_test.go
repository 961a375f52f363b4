package reciprocity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/logger"
)

type fakeInspector struct {
	lists map[string][]string
	err   error
	asked []int
}

func (f *fakeInspector) FollowingPrefix(ctx context.Context, identifier string, n int) ([]string, error) {
	f.asked = append(f.asked, n)
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[identifier], nil
}

func TestCheck(t *testing.T) {
	inspector := &fakeInspector{lists: map[string][]string{
		"first":   {"me", "a", "b"},
		"fifth":   {"a", "b", "c", "d", "Me"},
		"sixth":   {"a", "b", "c", "d", "e", "me"},
		"nobody":  {},
		"similar": {"me_too", "notme"},
	}}
	c := NewChecker(inspector, 0, logger.NewTestLogger())

	tests := []struct {
		identifier string
		want       bool
	}{
		{"first", true},
		{"fifth", true},
		{"sixth", false},
		{"nobody", false},
		{"similar", false},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			got, err := c.Check(context.Background(), tt.identifier, "me")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, DefaultPrefixSize, inspector.asked[0])
}

func TestCheckPrefixIsOverridable(t *testing.T) {
	inspector := &fakeInspector{lists: map[string][]string{
		"target": {"a", "b", "c", "d", "e", "me"},
	}}
	c := NewChecker(inspector, 6, logger.NewTestLogger())

	got, err := c.Check(context.Background(), "target", "me")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, []int{6}, inspector.asked)
}

func TestCheckFailureIsTyped(t *testing.T) {
	inspector := &fakeInspector{err: errs.TransientRender(errors.New("timeout"), "following dialog")}
	c := NewChecker(inspector, 5, logger.NewTestLogger())

	got, err := c.Check(context.Background(), "target", "me")
	require.Error(t, err)
	assert.False(t, got)
	assert.ErrorIs(t, err, errs.ErrReciprocityCheck)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTransientRender))
}

func TestCheckRequiresSelf(t *testing.T) {
	c := NewChecker(&fakeInspector{}, 5, logger.NewTestLogger())
	_, err := c.Check(context.Background(), "target", " ")
	assert.ErrorIs(t, err, errs.ErrReciprocityCheck)
}
