package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testParams = Params{
	T1:             20,
	T2:             27,
	AlarmAfter:     5 * time.Second,
	SamplingNormal: 60 * time.Second,
	SamplingFast:   10 * time.Second,
}

func auto(t float64, now time.Time, state State, since time.Time) Inputs {
	return Inputs{Temperature: t, Now: now, Mode: ModeAutomatic, State: state, TooHotSince: since}
}

func TestEvaluate_Normal(t *testing.T) {
	now := time.Now()
	out := Evaluate(auto(18, now, StateNormal, time.Time{}), testParams)

	assert.Equal(t, StateNormal, out.State)
	assert.Equal(t, 0.0, out.Window)
	assert.Equal(t, testParams.SamplingNormal, out.Period)
	assert.True(t, out.TooHotSince.IsZero())
}

func TestEvaluate_HotBand(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		temp    float64
		wantWin float64
	}{
		{"lower boundary", 20, 0.01},
		{"mid band", 23.5, (3.5/7)*0.99 + 0.01},
		{"upper boundary", 27, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(auto(tt.temp, now, StateNormal, time.Time{}), testParams)
			assert.Equal(t, StateHot, out.State)
			assert.InDelta(t, tt.wantWin, out.Window, 1e-9)
			assert.Equal(t, testParams.SamplingFast, out.Period)
			assert.True(t, out.TooHotSince.IsZero())
		})
	}
}

func TestEvaluate_HotBandMonotonic(t *testing.T) {
	now := time.Now()
	prev := 0.0
	for temp := testParams.T1; temp <= testParams.T2; temp += 0.05 {
		out := Evaluate(auto(temp, now, StateNormal, time.Time{}), testParams)
		assert.GreaterOrEqual(t, out.Window, prev, "opening must not decrease at t=%.2f", temp)
		assert.GreaterOrEqual(t, out.Window, 0.01)
		assert.LessOrEqual(t, out.Window, 1.0)
		prev = out.Window
	}
}

func TestEvaluate_TooHotArmsTimer(t *testing.T) {
	now := time.Now()
	out := Evaluate(auto(30, now, StateHot, time.Time{}), testParams)

	assert.Equal(t, StateTooHot, out.State)
	assert.Equal(t, 1.0, out.Window)
	assert.Equal(t, testParams.SamplingFast, out.Period)
	assert.Equal(t, now, out.TooHotSince)
}

func TestEvaluate_TooHotBeforeDeadline(t *testing.T) {
	start := time.Now()
	now := start.Add(testParams.AlarmAfter - 100*time.Millisecond)
	out := Evaluate(auto(30, now, StateTooHot, start), testParams)

	assert.Equal(t, StateTooHot, out.State)
	assert.Equal(t, start, out.TooHotSince)
}

func TestEvaluate_TooHotLatchesAlarm(t *testing.T) {
	start := time.Now()
	now := start.Add(testParams.AlarmAfter)
	out := Evaluate(auto(30, now, StateTooHot, start), testParams)

	assert.Equal(t, StateAlarm, out.State)
	assert.Equal(t, 1.0, out.Window)
	assert.Equal(t, start, out.TooHotSince, "timer is retained on the latching transition")
}

func TestEvaluate_AlarmIsAbsorbing(t *testing.T) {
	start := time.Now()
	for _, temp := range []float64{-5, 10, 21, 35} {
		out := Evaluate(auto(temp, start.Add(time.Hour), StateAlarm, start), testParams)
		assert.Equal(t, StateAlarm, out.State, "t=%.1f must not exit ALARM", temp)
		assert.Equal(t, 1.0, out.Window)
		assert.Equal(t, testParams.SamplingFast, out.Period)
		assert.Equal(t, start, out.TooHotSince)
	}
}

func TestEvaluate_AlarmAbsorbingInManual(t *testing.T) {
	start := time.Now()
	out := Evaluate(Inputs{
		Temperature: 10,
		Now:         start.Add(time.Minute),
		Mode:        ModeManual,
		State:       StateAlarm,
		Window:      0.3,
		TooHotSince: start,
	}, testParams)

	assert.Equal(t, StateAlarm, out.State)
	assert.Equal(t, 1.0, out.Window)
}

func TestEvaluate_ManualPassthrough(t *testing.T) {
	start := time.Now()
	out := Evaluate(Inputs{
		Temperature: 35,
		Now:         start,
		Mode:        ModeManual,
		State:       StateHot,
		Window:      0.42,
		TooHotSince: start.Add(-time.Hour),
	}, testParams)

	assert.Equal(t, StateHot, out.State, "manual mode does not derive state from temperature")
	assert.Equal(t, 0.42, out.Window)
	assert.Equal(t, testParams.SamplingNormal, out.Period)
	assert.True(t, out.TooHotSince.IsZero(), "manual evaluation clears the alarm timer")
}

func TestEvaluate_DegenerateThresholds(t *testing.T) {
	params := testParams
	params.T1 = 22
	params.T2 = 22
	now := time.Now()

	out := Evaluate(auto(22, now, StateNormal, time.Time{}), params)
	assert.Equal(t, StateHot, out.State)
	assert.Equal(t, 0.01, out.Window)

	out = Evaluate(auto(23, now, StateNormal, time.Time{}), params)
	assert.Equal(t, StateTooHot, out.State)
	assert.Equal(t, 1.0, out.Window)
}

func TestEvaluate_TimerClearedOnCooldown(t *testing.T) {
	start := time.Now()

	out := Evaluate(auto(25, start.Add(time.Second), StateTooHot, start), testParams)
	assert.Equal(t, StateHot, out.State)
	assert.True(t, out.TooHotSince.IsZero())

	out = Evaluate(auto(15, start.Add(time.Second), StateTooHot, start), testParams)
	assert.Equal(t, StateNormal, out.State)
	assert.True(t, out.TooHotSince.IsZero())
}
