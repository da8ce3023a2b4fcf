// Package waterml renders stored observation series into the canonical
// WaterML2-style output document of the exchange API.
package waterml

import (
	"encoding/xml"
	"time"
)

// Point is the feature-of-interest metadata of a monitoring point.
type Point struct {
	ExternalID string
	Name       string
	Country    string
	Latitude   float64
	Longitude  float64

	// UTCOffset is the point's timezone offset in minutes.
	UTCOffset int
}

// TimeValue is one measured time-value pair of a series.
type TimeValue struct {
	Time  time.Time
	Value float64
}

// Series is one point/property combination with its stored interval and
// measured values, as produced by the storage query.
type Series struct {
	Point          Point
	PropertySymbol string

	PhenomenonStart time.Time
	PhenomenonEnd   time.Time
	ResultTime      time.Time

	Values []TimeValue
}

// Document is the rendered output collection.
type Document struct {
	XMLName  xml.Name `xml:"wml2:Collection"`
	NSWML2   string   `xml:"xmlns:wml2,attr"`
	NSGML    string   `xml:"xmlns:gml,attr"`
	NSOM     string   `xml:"xmlns:om,attr"`
	Metadata Metadata `xml:"wml2:metadata"`
	Members  []Member `xml:"wml2:observationMember"`
}

// Metadata wraps the document-level metadata block.
type Metadata struct {
	DocumentMetadata DocumentMetadata `xml:"wml2:DocumentMetadata"`
}

// DocumentMetadata describes the generation of this document.
type DocumentMetadata struct {
	GenerationDate   string `xml:"wml2:generationDate"`
	GenerationSystem string `xml:"wml2:generationSystem"`
	Version          string `xml:"wml2:version"`
}

// Member is one observation of the collection. IntervalLimited marks a
// series whose stored start is later than the requested one, an advisory
// that less data was returned than asked for.
type Member struct {
	IntervalLimited bool        `xml:"intervalLimited,attr,omitempty"`
	Observation     Observation `xml:"om:OM_Observation"`
}

// Observation carries one point/property series.
type Observation struct {
	PhenomenonTime    TimePeriod        `xml:"om:phenomenonTime>gml:TimePeriod"`
	ResultTime        TimeInstant       `xml:"om:resultTime>gml:TimeInstant"`
	Procedure         Reference         `xml:"om:procedure"`
	ObservedProperty  Reference         `xml:"om:observedProperty"`
	FeatureOfInterest MonitoringPoint   `xml:"om:featureOfInterest>wml2:MonitoringPoint"`
	Result            MeasurementSeries `xml:"om:result>wml2:MeasurementTimeseries"`
}

// TimePeriod is a gml time period.
type TimePeriod struct {
	Begin string `xml:"gml:beginPosition"`
	End   string `xml:"gml:endPosition"`
}

// TimeInstant is a gml time instant.
type TimeInstant struct {
	Position string `xml:"gml:timePosition"`
}

// Reference is a titled reference element.
type Reference struct {
	Title string `xml:"title,attr"`
}

// MonitoringPoint is the feature-of-interest block.
type MonitoringPoint struct {
	Identifier     string `xml:"gml:identifier"`
	Name           string `xml:"gml:name"`
	Country        string `xml:"wml2:country,omitempty"`
	Position       string `xml:"wml2:shape>gml:Point>gml:pos"`
	TimeZoneOffset string `xml:"wml2:timeZone>wml2:TimeZoneInfo>wml2:zoneOffset"`
}

// MeasurementSeries is the nested time-value-pair series.
type MeasurementSeries struct {
	Points []MeasurementTVP `xml:"wml2:point>wml2:MeasurementTVP"`
}

// MeasurementTVP is one rendered time-value pair.
type MeasurementTVP struct {
	Time  string  `xml:"wml2:time"`
	Value float64 `xml:"wml2:value"`
}
