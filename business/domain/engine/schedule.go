package engine

const ticksPerHour = 144
const hoursPerDay = 24

const businessHoursStart = 9
const businessHoursEnd = 17

// HourOfTick derives the cyclical hour of day from the network tick.
func HourOfTick(tick uint32) uint32 {
	return (tick / ticksPerHour) % hoursPerDay
}

// isWithinBusinessHours is inclusive on both ends of the window.
func isWithinBusinessHours(tick uint32) bool {
	hour := HourOfTick(tick)
	return hour >= businessHoursStart && hour <= businessHoursEnd
}
