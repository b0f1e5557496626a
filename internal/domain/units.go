package domain

// KelvinOffset converts Kelvin to degrees Celsius.
const KelvinOffset = 273.15

// Variable names as they appear in the input files.
const (
	VariableTemperature   = "t2m"
	VariablePrecipitation = "tp"
	VariableWindSpeed     = "wind_speed"
)

// KelvinToCelsius returns a copy of s converted from Kelvin to Celsius.
func KelvinToCelsius(s GridSeries) GridSeries {
	return s.Map(s.Variable, func(v float64) float64 { return v - KelvinOffset })
}
