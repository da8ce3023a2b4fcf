// Package formats implements the declarative observation-format model: the
// typed parameter variants that describe where each semantic field of an
// observation lives in an arbitrary input XML document.
package formats

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ParameterType enumerates the closed set of format parameter variants.
type ParameterType string

// Format parameter variants.
const (
	MonitoringPoint        ParameterType = "MonitoringPoint"
	ObservedPropertyValue  ParameterType = "ObservedPropertyValue"
	ObservedPropertySymbol ParameterType = "ObservedPropertySymbol"
	Date                   ParameterType = "Date"
)

// DateType identifies which timestamp component a Date parameter carries.
type DateType string

// Timestamp components a Date parameter may address.
const (
	DateTypeYear     DateType = "Year"
	DateTypeMonth    DateType = "Month"
	DateTypeDay      DateType = "Day"
	DateTypeHour     DateType = "Hour"
	DateTypeMinute   DateType = "Minute"
	DateTypeSecond   DateType = "Second"
	DateTypeDate     DateType = "Date"
	DateTypeTime     DateType = "Time"
	DateTypeDateTime DateType = "DateTime"
)

// InvalidParameterError is returned when a configuration entry names an
// unknown parameter type.
type InvalidParameterError struct {
	Type string
}

// Error implements the error interface.
func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid format parameter type %q", e.Type)
}

// Parameter is one typed entry of a format configuration. The Type tag
// decides which of the variant fields are meaningful.
type Parameter struct {
	Type         ParameterType
	Attribute    string
	TagHierarchy []string
	Optional     bool

	// Date only.
	Format   string
	DateType DateType

	// ObservedPropertyValue only.
	ValueConversion string
	Symbol          string

	// ObservedPropertySymbol only.
	Variable string
}

// rawParameter mirrors the recognized configuration keys, including the
// legacy spellings kept for backward compatibility.
type rawParameter struct {
	Parameter          string   `mapstructure:"Parameter"`
	Attribute          string   `mapstructure:"Attribute"`
	TagHierarchy       []string `mapstructure:"TagHierarchy"`
	LegacyTagHierarchy []string `mapstructure:"Tag Hierarchy"`
	Format             string   `mapstructure:"Format"`
	LegacyFormat       string   `mapstructure:"Value"`
	Symbol             string   `mapstructure:"Symbol"`
	Variable           string   `mapstructure:"Variable"`
	ValueConversion    string   `mapstructure:"ValueConversion"`
	DateType           string   `mapstructure:"DateType"`
	Optional           any      `mapstructure:"Optional"`
}

// FromConfig constructs exactly one typed parameter from a configuration
// entry. Unrecognized option keys and unknown parameter types are rejected
// eagerly.
func FromConfig(entry map[string]any) (Parameter, error) {
	var raw rawParameter
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &raw,
		ErrorUnused: true,
	})
	if err != nil {
		return Parameter{}, fmt.Errorf("failed to create decoder: %v", err)
	}
	if err := decoder.Decode(entry); err != nil {
		return Parameter{}, fmt.Errorf("invalid format parameter entry: %w", err)
	}

	p := Parameter{
		Attribute:    raw.Attribute,
		TagHierarchy: raw.TagHierarchy,
		Optional:     Truthy(raw.Optional),
	}
	// Canonical spellings win over their legacy synonyms.
	if len(p.TagHierarchy) == 0 {
		p.TagHierarchy = raw.LegacyTagHierarchy
	}
	format := raw.Format
	if format == "" {
		format = raw.LegacyFormat
	}

	switch ParameterType(raw.Parameter) {
	case MonitoringPoint:
		p.Type = MonitoringPoint
	case ObservedPropertyValue:
		p.Type = ObservedPropertyValue
		p.ValueConversion = raw.ValueConversion
		p.Symbol = raw.Symbol
	case ObservedPropertySymbol:
		p.Type = ObservedPropertySymbol
		p.Variable = raw.Variable
	case Date:
		p.Type = Date
		p.Format = format
		dateType, err := parseDateType(raw.DateType)
		if err != nil {
			return Parameter{}, err
		}
		p.DateType = dateType
	default:
		return Parameter{}, InvalidParameterError{Type: raw.Parameter}
	}

	return p, nil
}

// parseDateType validates the date component type. An absent type means the
// parameter carries a full timestamp.
func parseDateType(name string) (DateType, error) {
	if name == "" {
		return DateTypeDateTime, nil
	}

	switch dt := DateType(name); dt {
	case DateTypeYear, DateTypeMonth, DateTypeDay, DateTypeHour,
		DateTypeMinute, DateTypeSecond, DateTypeDate, DateTypeTime, DateTypeDateTime:
		return dt, nil
	default:
		return "", fmt.Errorf("invalid date type %q", name)
	}
}

// Truthy reports whether v coerces to true under the canonical truthy-string
// rule: booleans pass through, strings are false when empty, "0", "false",
// "no" or "off" (case insensitive), true otherwise.
func Truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "", "0", "false", "no", "off":
			return false
		}
		return true
	case int:
		return value != 0
	case float64:
		return value != 0
	default:
		return false
	}
}
