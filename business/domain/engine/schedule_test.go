package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_HourOfTick(t *testing.T) {

	testData := []struct {
		name     string
		tick     uint32
		expected uint32
	}{
		{
			name:     "TestHourOfTick_GenesisTick",
			tick:     0,
			expected: 0,
		},
		{
			name:     "TestHourOfTick_LastTickOfFirstHour",
			tick:     143,
			expected: 0,
		},
		{
			name:     "TestHourOfTick_FirstTickOfSecondHour",
			tick:     144,
			expected: 1,
		},
		{
			name:     "TestHourOfTick_StartOfBusinessHours",
			tick:     9 * 144,
			expected: 9,
		},
		{
			name:     "TestHourOfTick_EndOfBusinessHours",
			tick:     17*144 + 143,
			expected: 17,
		},
		{
			name:     "TestHourOfTick_WrapsAroundAfterOneDay",
			tick:     24 * 144,
			expected: 0,
		},
		{
			name:     "TestHourOfTick_SecondDayAfternoon",
			tick:     24*144 + 13*144 + 42,
			expected: 13,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			assert.Equal(t, testRun.expected, HourOfTick(testRun.tick))
		})
	}

}

func TestSchedule_IsWithinBusinessHours(t *testing.T) {

	testData := []struct {
		name     string
		tick     uint32
		expected bool
	}{
		{
			name:     "TestBusinessHours_BeforeOpening",
			tick:     8*144 + 143,
			expected: false,
		},
		{
			name:     "TestBusinessHours_OpeningTick",
			tick:     9 * 144,
			expected: true,
		},
		{
			name:     "TestBusinessHours_LastTickOfWindow",
			tick:     17*144 + 143,
			expected: true,
		},
		{
			name:     "TestBusinessHours_AfterClosing",
			tick:     18 * 144,
			expected: false,
		},
		{
			name:     "TestBusinessHours_Midnight",
			tick:     0,
			expected: false,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			assert.Equal(t, testRun.expected, isWithinBusinessHours(testRun.tick))
		})
	}

}
