package waterml

import (
	"fmt"
	"time"
)

// Interval is a request-level time filter. Nil bounds leave the matching
// side of the series interval untouched.
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// Render builds the output document for the given series, clamping each
// phenomenon period to the intersection of the stored interval and the
// requested one. Values outside the requested interval are dropped.
func Render(series []Series, filter Interval, system, version string, now time.Time) Document {
	doc := Document{
		NSWML2: "http://www.opengis.net/waterml/2.0",
		NSGML:  "http://www.opengis.net/gml/3.2",
		NSOM:   "http://www.opengis.net/om/2.0",
		Metadata: Metadata{DocumentMetadata: DocumentMetadata{
			GenerationDate:   now.UTC().Format(time.RFC3339),
			GenerationSystem: system,
			Version:          version,
		}},
	}

	for _, s := range series {
		doc.Members = append(doc.Members, renderMember(s, filter))
	}
	return doc
}

func renderMember(s Series, filter Interval) Member {
	begin, end := clamp(s.PhenomenonStart, s.PhenomenonEnd, filter)

	member := Member{
		// The stored series starts after the requested interval does: the
		// consumer gets less data than asked for.
		IntervalLimited: filter.Start != nil && s.PhenomenonStart.After(*filter.Start),
		Observation: Observation{
			PhenomenonTime:   TimePeriod{Begin: position(begin), End: position(end)},
			ResultTime:       TimeInstant{Position: position(s.ResultTime)},
			Procedure:        Reference{Title: fmt.Sprintf("%s observation at %s", s.PropertySymbol, s.Point.ExternalID)},
			ObservedProperty: Reference{Title: s.PropertySymbol},
			FeatureOfInterest: MonitoringPoint{
				Identifier:     s.Point.ExternalID,
				Name:           s.Point.Name,
				Country:        s.Point.Country,
				Position:       fmt.Sprintf("%g %g", s.Point.Latitude, s.Point.Longitude),
				TimeZoneOffset: zoneOffset(s.Point.UTCOffset),
			},
		},
	}

	for _, tv := range s.Values {
		if filter.Start != nil && tv.Time.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && tv.Time.After(*filter.End) {
			continue
		}
		member.Observation.Result.Points = append(member.Observation.Result.Points, MeasurementTVP{
			Time:  position(tv.Time),
			Value: tv.Value,
		})
	}

	return member
}

// clamp intersects the stored interval with the requested one; the tighter
// bound wins on each side.
func clamp(begin, end time.Time, filter Interval) (time.Time, time.Time) {
	if filter.Start != nil && filter.Start.After(begin) {
		begin = *filter.Start
	}
	if filter.End != nil && filter.End.Before(end) {
		end = *filter.End
	}
	return begin, end
}

func position(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// zoneOffset renders a minute offset as the ±hh:mm zone string.
func zoneOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d:%02d", sign, minutes/60, minutes%60)
}
