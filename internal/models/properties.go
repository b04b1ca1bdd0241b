// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// EventProperties is the validated form of an event's property bag. Known
// keys are decoded into typed fields; everything else lands in Extra.
type EventProperties struct {
	Path        string   `json:"path,omitempty"`
	Title       string   `json:"title,omitempty"`
	Referrer    string   `json:"referrer,omitempty"`
	UTMSource   string   `json:"utm_source,omitempty"`
	UTMMedium   string   `json:"utm_medium,omitempty"`
	UTMCampaign string   `json:"utm_campaign,omitempty"`
	Target      string   `json:"target,omitempty"`
	Action      string   `json:"action,omitempty"`
	ValueMs     *float64 `json:"value_ms,omitempty"`
	Message     string   `json:"message,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Locale      string   `json:"locale,omitempty"`

	// Filled by enrichment, never by clients.
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// ErrMissingProperty is returned when a type-required property is absent.
var ErrMissingProperty = errors.New("missing required property")

const maxPropertyLen = 512

// requiredProperties lists, per event type, the keys that must be present.
var requiredProperties = map[EventType][]string{
	EventPageview:    {"path"},
	EventNavigation:  {"path"},
	EventInteraction: {"target"},
	EventPerformance: {"path", "value_ms"},
}

// enrichmentKeys may not be supplied by clients.
var enrichmentKeys = map[string]bool{"country": true, "city": true, "browser": true, "os": true}

// ParseProperties validates raw against the schema of eventType.
func ParseProperties(eventType EventType, raw map[string]interface{}) (EventProperties, error) {
	var props EventProperties

	for _, key := range requiredProperties[eventType] {
		if v, ok := raw[key]; !ok || v == nil || v == "" {
			return props, fmt.Errorf("%w: %s", ErrMissingProperty, key)
		}
	}

	for key, value := range raw {
		if enrichmentKeys[key] {
			continue
		}
		if key == "value_ms" {
			ms, err := toFloat(value)
			if err != nil || ms < 0 {
				return props, fmt.Errorf("value_ms must be a non-negative number")
			}
			props.ValueMs = &ms
			continue
		}

		s, err := toString(value)
		if err != nil {
			return props, fmt.Errorf("property %s: %w", key, err)
		}
		if len(s) > maxPropertyLen {
			return props, fmt.Errorf("property %s exceeds %d bytes", key, maxPropertyLen)
		}
		if !props.setKnown(key, s) {
			if props.Extra == nil {
				props.Extra = make(map[string]string)
			}
			props.Extra[key] = s
		}
	}
	return props, nil
}

func (p *EventProperties) setKnown(key, value string) bool {
	switch key {
	case "path":
		p.Path = value
	case "title":
		p.Title = value
	case "referrer":
		p.Referrer = value
	case "utm_source":
		p.UTMSource = value
	case "utm_medium":
		p.UTMMedium = value
	case "utm_campaign":
		p.UTMCampaign = value
	case "target":
		p.Target = value
	case "action":
		p.Action = value
	case "message":
		p.Message = value
	case "timezone":
		p.Timezone = value
	case "locale":
		p.Locale = value
	default:
		return false
	}
	return true
}

// HasUTM reports whether any campaign parameter is set.
func (p *EventProperties) HasUTM() bool {
	return p.UTMSource != "" || p.UTMMedium != "" || p.UTMCampaign != ""
}

func toString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// toFloat accepts finite numbers only. NaN and Inf cannot be stored as JSON.
func toFloat(v interface{}) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return f, nil
}
