package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0rbu/llamastack-austin/internal/mi"
)

func TestWindowRecentView(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 5; i++ {
		w.Append(StepRecord{Step: i, Command: fmt.Sprintf("-cmd-%d", i)})
	}

	require.Equal(t, 5, w.Len())
	recent := w.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, 3, recent[0].Step)
	assert.Equal(t, 4, recent[1].Step)
	assert.Equal(t, 5, recent[2].Step)
}

func TestWindowRecentViewFewerThanK(t *testing.T) {
	w := NewWindow(10)
	w.Append(StepRecord{Step: 1})
	w.Append(StepRecord{Step: 2})

	recent := w.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, 1, recent[0].Step)
}

func TestWindowAllReturnsCopy(t *testing.T) {
	w := NewWindow(2)
	w.Append(StepRecord{Step: 1, Command: "-exec-run"})

	all := w.All()
	all[0].Command = "mutated"
	assert.Equal(t, "-exec-run", w.All()[0].Command)
}

func TestSummarize(t *testing.T) {
	events := mi.DecodeAll([]string{
		"^running",
		`*stopped,reason="signal-received",signal-name="SIGSEGV"`,
	})
	s := Summarize(events)
	assert.Contains(t, s, "result running")
	assert.Contains(t, s, "SIGSEGV")

	assert.Equal(t, "(no gdb output)", Summarize(nil))
}
