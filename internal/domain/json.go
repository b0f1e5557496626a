package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// NullableFloat encodes non-finite values as JSON null and decodes null as NaN.
type NullableFloat float64

func (f NullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *NullableFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = NullableFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = NullableFloat(v)
	return nil
}

type monthStatJSON struct {
	Mean NullableFloat `json:"mean"`
	Std  NullableFloat `json:"std"`
	N    int           `json:"n"`
}

func (m MonthStat) MarshalJSON() ([]byte, error) {
	return json.Marshal(monthStatJSON{Mean: NullableFloat(m.Mean), Std: NullableFloat(m.Std), N: m.N})
}

func (m *MonthStat) UnmarshalJSON(b []byte) error {
	var aux monthStatJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*m = MonthStat{Mean: float64(aux.Mean), Std: float64(aux.Std), N: aux.N}
	return nil
}

type thresholdsJSON struct {
	Variable string              `json:"variable"`
	Period   RefPeriod           `json:"period"`
	LowQ     float64             `json:"low_q"`
	HighQ    float64             `json:"high_q"`
	Cells    []Cell              `json:"cells"`
	Low      [][12]NullableFloat `json:"low"`
	High     [][12]NullableFloat `json:"high"`
}

func (t MonthlyThresholds) MarshalJSON() ([]byte, error) {
	return json.Marshal(thresholdsJSON{
		Variable: t.Variable, Period: t.Period, LowQ: t.LowQ, HighQ: t.HighQ, Cells: t.Cells,
		Low: toNullable(t.Low), High: toNullable(t.High),
	})
}

func (t *MonthlyThresholds) UnmarshalJSON(b []byte) error {
	var aux thresholdsJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*t = MonthlyThresholds{
		Variable: aux.Variable, Period: aux.Period, LowQ: aux.LowQ, HighQ: aux.HighQ, Cells: aux.Cells,
		Low: fromNullable(aux.Low), High: fromNullable(aux.High),
	}
	return nil
}

type pointJSON struct {
	Period YearMonth     `json:"period"`
	Value  NullableFloat `json:"value"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Period: p.Period, Value: NullableFloat(p.Value)})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var aux pointJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Point{Period: aux.Period, Value: float64(aux.Value)}
	return nil
}

type carryJSON struct {
	Year   int             `json:"year"`
	Cells  []Cell          `json:"cells"`
	Values []NullableFloat `json:"values"`
}

func (c CDDCarry) MarshalJSON() ([]byte, error) {
	vals := make([]NullableFloat, len(c.Values))
	for i, v := range c.Values {
		vals[i] = NullableFloat(v)
	}
	return json.Marshal(carryJSON{Year: c.Year, Cells: c.Cells, Values: vals})
}

func (c *CDDCarry) UnmarshalJSON(b []byte) error {
	var aux carryJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	vals := make([]float64, len(aux.Values))
	for i, v := range aux.Values {
		vals[i] = float64(v)
	}
	*c = CDDCarry{Year: aux.Year, Cells: aux.Cells, Values: vals}
	return nil
}

type icaRecordJSON struct {
	Region  string        `json:"region"`
	Period  YearMonth     `json:"period"`
	T90     NullableFloat `json:"t90"`
	T10     NullableFloat `json:"t10"`
	Wind    NullableFloat `json:"wind"`
	Rain    NullableFloat `json:"rain"`
	Drought NullableFloat `json:"drought"`
	ICA     NullableFloat `json:"ica"`
}

func (r ICARecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(icaRecordJSON{
		Region: r.Region, Period: r.Period,
		T90: NullableFloat(r.T90), T10: NullableFloat(r.T10), Wind: NullableFloat(r.Wind),
		Rain: NullableFloat(r.Rain), Drought: NullableFloat(r.Drought), ICA: NullableFloat(r.ICA),
	})
}

func (r *ICARecord) UnmarshalJSON(b []byte) error {
	var aux icaRecordJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = ICARecord{
		Region: aux.Region, Period: aux.Period,
		T90: float64(aux.T90), T10: float64(aux.T10), Wind: float64(aux.Wind),
		Rain: float64(aux.Rain), Drought: float64(aux.Drought), ICA: float64(aux.ICA),
	}
	return nil
}

func toNullable(in [][12]float64) [][12]NullableFloat {
	out := make([][12]NullableFloat, len(in))
	for c := range in {
		for m := range in[c] {
			out[c][m] = NullableFloat(in[c][m])
		}
	}
	return out
}

func fromNullable(in [][12]NullableFloat) [][12]float64 {
	out := make([][12]float64, len(in))
	for c := range in {
		for m := range in[c] {
			out[c][m] = float64(in[c][m])
		}
	}
	return out
}
