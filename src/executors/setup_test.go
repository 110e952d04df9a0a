package executors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupUnwindsInReverseOnFailure(t *testing.T) {
	s := NewSetup(nil)
	var undone []string

	step := func(name string) func() (func(), error) {
		return func() (func(), error) {
			return func() { undone = append(undone, name) }, nil
		}
	}

	require.NoError(t, s.Step("main db", step("main db")))
	require.NoError(t, s.Step("signals db", step("signals db")))
	require.NoError(t, s.Step("no undo", func() (func(), error) { return nil, nil }))
	assert.Equal(t, 2, s.Len())

	err := s.Step("stream", func() (func(), error) {
		return func() { undone = append(undone, "stream") }, errors.New("dial failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step stream")

	assert.Equal(t, []string{"signals db", "main db"}, undone)
	assert.Equal(t, 0, s.Len())
}

func TestSetupUnwindSurvivesPanickingUndo(t *testing.T) {
	s := NewSetup(nil)
	var undone []string

	require.NoError(t, s.Step("first", func() (func(), error) {
		return func() { undone = append(undone, "first") }, nil
	}))
	require.NoError(t, s.Step("second", func() (func(), error) {
		return func() { panic("boom") }, nil
	}))

	s.Unwind()
	assert.Equal(t, []string{"first"}, undone)

	s.Unwind()
	assert.Equal(t, []string{"first"}, undone)
}
