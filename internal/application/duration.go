package application

import (
	"regexp"
	"strconv"
	"time"
)

var (
	minutesPattern = regexp.MustCompile(`(\d+)m(?:[^s]|$)`)
	secondsPattern = regexp.MustCompile(`(\d+)s`)
)

// ParseCompactDuration parses the CI service's compact duration strings such
// as "10m32s", "45s" or "3m". Missing components count as zero and input with
// no recognizable component yields 0. It never fails.
func ParseCompactDuration(s string) time.Duration {
	return componentOf(minutesPattern, s)*time.Minute + componentOf(secondsPattern, s)*time.Second
}

func componentOf(re *regexp.Regexp, s string) time.Duration {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(n)
}
