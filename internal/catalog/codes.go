package catalog

import (
	"strconv"
	"strings"
)

// CompareCodes orders codifier codes numerically segment by segment, so
// "1.2" sorts before "1.10". Non-numeric segments compare as strings.
func CompareCodes(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aErr := strconv.Atoi(as[i])
		bi, bErr := strconv.Atoi(bs[i])
		switch {
		case aErr == nil && bErr == nil:
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
		case as[i] != bs[i]:
			return strings.Compare(as[i], bs[i])
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// ProblemTypeName names an exam problem number ("Задание 6").
func ProblemTypeName(n int) string {
	return "Задание " + strconv.Itoa(n)
}
