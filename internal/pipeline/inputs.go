package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/extract"
	"github.com/couchcryptid/climate-index/internal/resample"
)

// inputs loads one region's daily fields for a year, clipped to the region
// and restricted to the calendar year. Temperature and wind days are UTC
// days; precipitation days are local days shifted by offset.
type inputs struct {
	src    Source
	region Clipper
	offset time.Duration // precipitation only
	rho    float64
}

func (in inputs) load(ctx context.Context, variable string, year int) (domain.GridSeries, error) {
	s, err := in.src.Load(ctx, variable, year)
	if err != nil {
		return domain.GridSeries{}, err
	}
	if in.region == nil {
		return s, nil
	}
	return in.region.Clip(s)
}

// temperature returns daily maximum and minimum temperature in Celsius.
func (in inputs) temperature(ctx context.Context, year int) (tx, tn domain.GridSeries, err error) {
	hourly, err := in.load(ctx, VarTemperature, year)
	if err != nil {
		return tx, tn, err
	}
	tx, tn, err = resample.DailyMaxMin(domain.KelvinToCelsius(hourly), 0)
	if err != nil {
		return tx, tn, err
	}
	if tx, err = calendarYear(tx, year); err != nil {
		return tx, tn, err
	}
	tn, err = calendarYear(tn, year)
	return tx, tn, err
}

// precipitation returns daily precipitation totals.
func (in inputs) precipitation(ctx context.Context, year int) (domain.GridSeries, error) {
	hourly, err := in.load(ctx, VarPrecipitation, year)
	if err != nil {
		return domain.GridSeries{}, err
	}
	daily, err := resample.DailySum(hourly, in.offset)
	if err != nil {
		return domain.GridSeries{}, err
	}
	return calendarYear(daily, year)
}

// windPower returns the daily mean wind power density.
func (in inputs) windPower(ctx context.Context, year int) (domain.GridSeries, error) {
	hourly, err := in.load(ctx, VarWindSpeed, year)
	if err != nil {
		return domain.GridSeries{}, err
	}
	power := extract.WindPower(hourly, in.rho)
	daily, err := resample.Daily(power, power.Variable, resample.Mean, 0)
	if err != nil {
		return domain.GridSeries{}, err
	}
	return calendarYear(daily, year)
}

// calendarYear drops the days a local-time shift pushed into a neighbouring
// year.
func calendarYear(s domain.GridSeries, year int) (domain.GridSeries, error) {
	out := s.Year(year)
	if out.Len() == 0 {
		return domain.GridSeries{}, fmt.Errorf("%w: %s has no days in %d", domain.ErrMissingInput, s.Variable, year)
	}
	return out, nil
}
