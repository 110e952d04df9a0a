package risk

import (
	"time"
)

const (
	DaysPerWeek          = 7
	ThirdMondayOffset    = 2
	FourthThursdayOffset = 3
	juneteenthFirstYear  = 2022
)

// IsTradingDay reports whether the NYSE has a regular session on the New York
// calendar date of t.
func IsTradingDay(t time.Time) bool {
	et := getEasternTime(t)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !isHoliday(et)
}

// NextTradingDay returns midnight New York time of the first trading day
// strictly after t.
func NextTradingDay(t time.Time) time.Time {
	et := getEasternTime(t)
	day := time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, et.Location())
	for {
		day = day.AddDate(0, 0, 1)
		if IsTradingDay(day) {
			return day
		}
	}
}

func getEasternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

// Holidays returns the full-day market closures of year, already moved to
// their observed dates.
func Holidays(year int) []time.Time {
	holidays := []time.Time{
		calculateSpecificMonday(year, time.January, ThirdMondayOffset),  // Martin Luther King Jr. Day
		calculateSpecificMonday(year, time.February, ThirdMondayOffset), // Presidents' Day
		easterSunday(year).AddDate(0, 0, -2),                            // Good Friday
		lastMonday(year, time.May),                                      // Memorial Day
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		calculateSpecificMonday(year, time.September, 0), // Labor Day
		calculateSpecificThursday(year, time.November, FourthThursdayOffset),
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}

	// New Year's Day on a Saturday is not observed on the prior Friday.
	newYearsDay := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if newYearsDay.Weekday() != time.Saturday {
		holidays = append(holidays, observed(newYearsDay))
	}

	if year >= juneteenthFirstYear {
		holidays = append(holidays, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}

	return holidays
}

func isHoliday(t time.Time) bool {
	return isDateAmong(t, Holidays(t.Year()))
}

// observed moves a Saturday holiday to Friday and a Sunday holiday to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func lastMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// calculateSpecificMonday calculates the specific Monday of a month (like the third Monday).
func calculateSpecificMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*DaysPerWeek)
}

// calculateSpecificThursday calculates the specific Thursday of a month (like the fourth Thursday).
func calculateSpecificThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*DaysPerWeek)
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
