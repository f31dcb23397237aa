package realtime

import (
	"fmt"
	"strings"
)

// Filter 行过滤条件，目前只支持 journey_id 等值
type Filter struct {
	JourneyID string
}

// ParseFilter 解析形如 journey_id=eq.<id> 的过滤表达式，空串表示不过滤
func ParseFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}

	column, rest, ok := strings.Cut(expr, "=")
	if !ok {
		return Filter{}, fmt.Errorf("realtime: malformed filter %q", expr)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok || op != "eq" {
		return Filter{}, fmt.Errorf("realtime: unsupported operator in %q", expr)
	}
	if column != "journey_id" {
		return Filter{}, fmt.Errorf("realtime: unsupported column %q", column)
	}
	if value == "" {
		return Filter{}, fmt.Errorf("realtime: empty value in %q", expr)
	}
	return Filter{JourneyID: value}, nil
}

// ForJourney 只接收某一行程的变更
func ForJourney(journeyID string) Filter {
	return Filter{JourneyID: journeyID}
}

func (f Filter) Matches(c Change) bool {
	return f.JourneyID == "" || f.JourneyID == c.JourneyID
}

func (f Filter) String() string {
	if f.JourneyID == "" {
		return ""
	}
	return "journey_id=eq." + f.JourneyID
}
