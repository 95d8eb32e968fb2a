package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"atpkiosk/models"
	"atpkiosk/services/navigation"
	"atpkiosk/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000", "http://kiosk.local"}, splitOrigins(" http://localhost:3000, ,http://kiosk.local "))
	assert.Nil(t, splitOrigins(""))
}

func TestStepTracker_PlacesFailureAfterLastGood(t *testing.T) {
	var tr stepTracker
	tr.observe(models.JobPaid)
	tr.observe(models.JobPrinting)
	steps := tr.observe(models.JobFailed)

	require.Len(t, steps, 4)
	assert.Equal(t, models.StepDone, steps[0].State)
	assert.Equal(t, models.StepDone, steps[1].State)
	assert.Equal(t, models.StepDone, steps[2].State)
	assert.Equal(t, models.StepFailed, steps[3].State)
	assert.Equal(t, models.JobPrinting, tr.last)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "thesis.pdf", displayName("thesis.pdf"))
	long := strings.Repeat("a", 60) + ".pdf"
	short := displayName(long)
	assert.Equal(t, strings.Repeat("a", maxNameWidth)+"...", short)
}

func TestPrintSteps(t *testing.T) {
	var buf bytes.Buffer
	printSteps(&buf, models.BuildSteps(models.JobPrinting, models.JobPaid))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "[x]")
	assert.Contains(t, lines[2], "[>]")
	assert.Contains(t, lines[3], "[ ]")
}

func TestWaitFor(t *testing.T) {
	updates := make(chan navigation.State, 3)
	updates <- navigation.State{Stage: models.StageHome}
	updates <- navigation.State{Stage: models.StageUpload}
	st, err := waitFor(context.Background(), updates, func(st navigation.State) bool { return st.Stage == models.StageUpload })
	require.NoError(t, err)
	assert.Equal(t, models.StageUpload, st.Stage)

	close(updates)
	_, err = waitFor(context.Background(), updates, func(navigation.State) bool { return true })
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = waitFor(ctx, make(chan navigation.State), func(navigation.State) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotice(t *testing.T) {
	st := navigation.State{Notification: &models.Notification{Message: navigation.MsgExpired}}
	assert.EqualError(t, notice(st, "fallback"), navigation.MsgExpired)
	assert.EqualError(t, notice(navigation.State{}, "fallback"), "fallback")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("KIOSK_API_SECRET", "s3cret")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--ttl", "1h"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	token := strings.TrimSpace(out.String())
	sub, err := utils.ExtractSubject("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, utils.RendererSubject, sub)

	tok, err := utils.ValidateToken("s3cret", token)
	require.NoError(t, err)
	assert.True(t, tok.Valid)
}
