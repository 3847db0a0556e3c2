package buildlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `[10:00:00] Started by user admin
[10:00:01] [Pipeline] { (Checkout)
[10:00:01] Cloning repository...
[10:00:05] [Pipeline] echo
[10:00:05] checked out revision abc123
[10:02:16] [Pipeline] { (Build)
[10:02:16] [Pipeline] echo
[10:02:16] compiling 42 modules
[10:04:00] [Pipeline] { (Deploy)
[10:04:00] Uploading artifacts...
`

func TestParse_StepsInSourceOrder(t *testing.T) {
	steps := Parse(sampleLog)
	require.Len(t, steps, 3)

	for i, step := range steps {
		assert.Equal(t, i+1, step.Seq)
		assert.Equal(t, StatusSuccess, step.Status)
	}
	assert.Equal(t, "Checkout", steps[0].Name)
	assert.Equal(t, "Build", steps[1].Name)
	assert.Equal(t, "Deploy", steps[2].Name)
}

func TestParse_Durations(t *testing.T) {
	steps := Parse(sampleLog)
	require.Len(t, steps, 3)

	// Checkout: 10:00:01 -> 10:02:16
	assert.Equal(t, "2m 15s", steps[0].Duration)
	// Build: 10:02:16 -> 10:04:00
	assert.Equal(t, "1m 44s", steps[1].Duration)
	// Deploy is never closed.
	assert.Equal(t, NoDuration, steps[2].Duration)
}

func TestParse_SubMinuteDuration(t *testing.T) {
	log := "[10:00:00] [Pipeline] { (A)\n[10:00:42] [Pipeline] { (B)\n"
	steps := Parse(log)
	require.Len(t, steps, 2)
	assert.Equal(t, "42s", steps[0].Duration)
}

func TestParse_MidnightWraparound(t *testing.T) {
	log := "[23:59:50] [Pipeline] { (Nightly)\n[00:00:10] [Pipeline] { (Next)\n"
	steps := Parse(log)
	require.Len(t, steps, 2)
	assert.Equal(t, "20s", steps[0].Duration)
}

func TestParse_MissingTimestampYieldsDash(t *testing.T) {
	log := "[Pipeline] { (Untimed)\n[10:00:10] [Pipeline] { (Timed)\n"
	steps := Parse(log)
	require.Len(t, steps, 2)
	assert.Equal(t, NoDuration, steps[0].Duration)
}

func TestParse_EchoAssociation(t *testing.T) {
	steps := Parse(sampleLog)
	require.Len(t, steps, 3)

	require.Len(t, steps[0].Echoes, 1)
	assert.Equal(t, 1, steps[0].Echoes[0].Seq)
	assert.Equal(t, "checked out revision abc123", steps[0].Echoes[0].Content)

	// Echo numbering restarts per step.
	require.Len(t, steps[1].Echoes, 1)
	assert.Equal(t, 1, steps[1].Echoes[0].Seq)
	assert.Equal(t, "compiling 42 modules", steps[1].Echoes[0].Content)

	assert.Empty(t, steps[2].Echoes)
}

func TestParse_EchoSkipsBlankLines(t *testing.T) {
	log := "[10:00:00] [Pipeline] { (Stage)\n" +
		"[10:00:01] [Pipeline] echo\n" +
		"\n" +
		"   \n" +
		"[10:00:02] the actual message\n"
	steps := Parse(log)
	require.Len(t, steps, 1)
	require.Len(t, steps[0].Echoes, 1)
	assert.Equal(t, "the actual message", steps[0].Echoes[0].Content)
}

func TestParse_MultipleEchoesNumberedWithinStep(t *testing.T) {
	log := "[10:00:00] [Pipeline] { (Stage)\n" +
		"[Pipeline] echo\n" +
		"first\n" +
		"[Pipeline] echo\n" +
		"second\n"
	steps := Parse(log)
	require.Len(t, steps, 1)
	require.Len(t, steps[0].Echoes, 2)
	assert.Equal(t, 1, steps[0].Echoes[0].Seq)
	assert.Equal(t, "first", steps[0].Echoes[0].Content)
	assert.Equal(t, 2, steps[0].Echoes[1].Seq)
	assert.Equal(t, "second", steps[0].Echoes[1].Content)
}

func TestParse_EchoBeforeAnyStepIsDropped(t *testing.T) {
	log := "[Pipeline] echo\norphan message\n[10:00:00] [Pipeline] { (Stage)\n"
	steps := Parse(log)
	require.Len(t, steps, 1)
	assert.Empty(t, steps[0].Echoes)
}

func TestParse_Deterministic(t *testing.T) {
	first := Parse(sampleLog)
	second := Parse(sampleLog)
	assert.Equal(t, first, second)
}

func TestParse_EmptyInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("no pipeline markers here\njust noise\n"))
}

func TestParse_ManyStages(t *testing.T) {
	log := ""
	for i := 0; i < 25; i++ {
		log += fmt.Sprintf("[10:%02d:00] [Pipeline] { (stage-%d)\n", i, i)
	}
	steps := Parse(log)
	require.Len(t, steps, 25)
	for i, step := range steps {
		assert.Equal(t, i+1, step.Seq)
		assert.Equal(t, fmt.Sprintf("stage-%d", i), step.Name)
	}
}

func TestParse_MalformedTimestampFallsBack(t *testing.T) {
	// Hour out of range: the bracket text is not a timestamp, so the step
	// has no opening time and its duration is undefined.
	log := "[99:00:00] [Pipeline] { (Broken)\n[10:00:10] [Pipeline] { (Fine)\n"
	steps := Parse(log)
	require.Len(t, steps, 2)
	assert.Equal(t, "Broken", steps[0].Name)
	assert.Equal(t, NoDuration, steps[0].Duration)
}
