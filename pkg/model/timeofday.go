package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	FechaLayout   = "2006-01-02"
	MinutesPerDay = 24 * 60
)

var horaRegex = regexp.MustCompile(`^([01][0-9]|2[0-4]):([0-5][0-9])$`)

// ParseHora converts "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseHora(hora string) (int, error) {
	m := horaRegex.FindStringSubmatch(hora)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", hora)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	total := h*60 + min
	if total > MinutesPerDay {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", hora)
	}
	return total, nil
}

func FormatHora(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func ParseFecha(fecha string) (time.Time, error) {
	t, err := time.Parse(FechaLayout, fecha)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", fecha)
	}
	return t, nil
}

// Interval is a half-open [Start, End) range in minutes after midnight.
type Interval struct {
	Start int
	End   int
}

func NewInterval(horaInicio, horaFin string) (Interval, error) {
	start, err := ParseHora(horaInicio)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseHora(horaFin)
	if err != nil {
		return Interval{}, err
	}
	if start >= end {
		return Interval{}, fmt.Errorf("hora_inicio %s must be before hora_fin %s", horaInicio, horaFin)
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}
