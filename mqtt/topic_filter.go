// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"strings"

	"github.com/edgebench/sigbench/errors"
)

const sharedPrefix = "$share/"

// IsTopicFilterMatch checks if a topic name matches a topic filter.
func IsTopicFilterMatch(topicFilter, topicName string) bool {
	if tf, ok := strings.CutPrefix(topicFilter, sharedPrefix); ok {
		idx := strings.Index(tf, "/")
		if idx == -1 {
			return false
		}
		topicFilter = tf[idx+1:]
	}

	filters := strings.Split(topicFilter, "/")
	names := strings.Split(topicName, "/")

	for i, filter := range filters {
		switch filter {
		case "#":
			// Multi-level wildcard must be at the end.
			return i == len(filters)-1
		case "+":
			if i >= len(names) {
				return false
			}
		default:
			if i >= len(names) || filter != names[i] {
				return false
			}
		}
	}
	return len(filters) == len(names)
}

// ValidateTopicName checks that a topic can be published to.
func ValidateTopicName(topic string) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return &errors.Error{
			Message:       "invalid topic name",
			Kind:          errors.ConfigurationInvalid,
			PropertyName:  "topic",
			PropertyValue: topic,
		}
	}
	return nil
}
