package task

import (
	"fmt"
	"hash/fnv"
	"regexp"
)

var featureIDPattern = regexp.MustCompile(`^[0-9]{4}$`)

// FeatureID derives a stable four-digit identifier from a feature name.
// The same name always yields the same identifier, so repeated invocations
// for a feature address the same persisted record.
func FeatureID(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%04d", h.Sum32()%10000)
}

// ValidFeatureID reports whether s is a well-formed feature identifier.
func ValidFeatureID(s string) bool {
	return featureIDPattern.MatchString(s)
}
