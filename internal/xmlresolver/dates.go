package xmlresolver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hydromet/datanode/internal/formats"
)

// timeParts holds the components of a timestamp under composition.
type timeParts struct {
	year, month, day     int
	hour, minute, second int
}

// ComposeTimestamp combines the group's Date items, left to right, into one
// UTC timestamp. Each item overrides the components it carries, so a full
// DateTime can be refined by later fragment parameters and vice versa.
func ComposeTimestamp(group *Group) (time.Time, error) {
	items := group.ByType(formats.Date)
	if len(items) == 0 {
		return time.Time{}, fmt.Errorf("group has no date parameters")
	}

	parts := timeParts{year: 1, month: 1, day: 1}
	for _, item := range items {
		if err := applyDateItem(&parts, item); err != nil {
			return time.Time{}, err
		}
	}

	return time.Date(parts.year, time.Month(parts.month), parts.day,
		parts.hour, parts.minute, parts.second, 0, time.UTC), nil
}

// applyDateItem parses one Date item and overrides the components it
// addresses. Single components parse as plain integers, or through the
// parameter's layout when one is configured; composite types parse against
// the parameter's reference layout.
func applyDateItem(parts *timeParts, item *Item) error {
	p := item.Parameter

	switch p.DateType {
	case formats.DateTypeYear, formats.DateTypeMonth, formats.DateTypeDay,
		formats.DateTypeHour, formats.DateTypeMinute, formats.DateTypeSecond:
		value, err := componentValue(item)
		if err != nil {
			return err
		}
		switch p.DateType {
		case formats.DateTypeYear:
			parts.year = value
		case formats.DateTypeMonth:
			parts.month = value
		case formats.DateTypeDay:
			parts.day = value
		case formats.DateTypeHour:
			parts.hour = value
		case formats.DateTypeMinute:
			parts.minute = value
		case formats.DateTypeSecond:
			parts.second = value
		}
		return nil

	case formats.DateTypeDate:
		parsed, err := parseLayout(item, "2006-01-02")
		if err != nil {
			return err
		}
		parts.year, parts.month, parts.day = parsed.Year(), int(parsed.Month()), parsed.Day()
		return nil

	case formats.DateTypeTime:
		parsed, err := parseLayout(item, "15:04:05")
		if err != nil {
			return err
		}
		parts.hour, parts.minute, parts.second = parsed.Hour(), parsed.Minute(), parsed.Second()
		return nil

	case formats.DateTypeDateTime:
		parsed, err := parseLayout(item, time.RFC3339)
		if err != nil {
			return err
		}
		parts.year, parts.month, parts.day = parsed.Year(), int(parsed.Month()), parsed.Day()
		parts.hour, parts.minute, parts.second = parsed.Hour(), parsed.Minute(), parsed.Second()
		return nil

	default:
		return fmt.Errorf("unknown date type %q", p.DateType)
	}
}

// componentValue extracts a single timestamp component. Without a configured
// layout the value is a plain integer; with one, the value is parsed through
// the layout so that forms such as two-digit years resolve correctly.
func componentValue(item *Item) (int, error) {
	p := item.Parameter
	if p.Format == "" {
		value, err := strconv.Atoi(item.Value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %v", p.DateType, item.Value, err)
		}
		return value, nil
	}

	parsed, err := parseLayout(item, "")
	if err != nil {
		return 0, err
	}
	switch p.DateType {
	case formats.DateTypeYear:
		return parsed.Year(), nil
	case formats.DateTypeMonth:
		return int(parsed.Month()), nil
	case formats.DateTypeDay:
		return parsed.Day(), nil
	case formats.DateTypeHour:
		return parsed.Hour(), nil
	case formats.DateTypeMinute:
		return parsed.Minute(), nil
	case formats.DateTypeSecond:
		return parsed.Second(), nil
	}
	return 0, fmt.Errorf("unknown date type %q", p.DateType)
}

// parseLayout parses the item's value with its configured layout, falling
// back to the date type's default layout.
func parseLayout(item *Item, defaultLayout string) (time.Time, error) {
	layout := item.Parameter.Format
	if layout == "" {
		layout = defaultLayout
	}

	parsed, err := time.Parse(layout, item.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q for layout %q: %v",
			item.Parameter.DateType, item.Value, layout, err)
	}
	return parsed, nil
}
