// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package ingest

import (
	"fmt"
	"net"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"

	"github.com/tomtom215/pulse/internal/models"
)

// GeoLocation is a resolved client location.
type GeoLocation struct {
	Country string
	City    string
}

// GeoResolver maps a client IP to a location.
type GeoResolver interface {
	Lookup(ip net.IP) (GeoLocation, bool)
}

// GeoIPResolver reads a MaxMind GeoIP2/GeoLite2 City database.
type GeoIPResolver struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens the City database at path.
func OpenGeoIP(path string) (*GeoIPResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &GeoIPResolver{reader: reader}, nil
}

func (g *GeoIPResolver) Lookup(ip net.IP) (GeoLocation, bool) {
	record, err := g.reader.City(ip)
	if err != nil || record.Country.IsoCode == "" {
		return GeoLocation{}, false
	}
	return GeoLocation{Country: record.Country.IsoCode, City: record.City.Names["en"]}, true
}

func (g *GeoIPResolver) Close() error {
	return g.reader.Close()
}

// Enricher adds server-side context to accepted events. A nil GeoResolver
// disables location lookups.
type Enricher struct {
	geo GeoResolver
}

func NewEnricher(geo GeoResolver) *Enricher {
	return &Enricher{geo: geo}
}

// requestContext is resolved once per batch.
type requestContext struct {
	location GeoLocation
	browser  string
	os       string
}

func (e *Enricher) resolve(meta RequestMeta) requestContext {
	var rc requestContext
	if e != nil && e.geo != nil && meta.ClientIP != "" {
		if ip := net.ParseIP(meta.ClientIP); ip != nil {
			if loc, ok := e.geo.Lookup(ip); ok {
				rc.location = loc
			}
		}
	}
	if meta.UserAgent != "" {
		ua := useragent.New(meta.UserAgent)
		rc.browser, _ = ua.Browser()
		rc.os = ua.OS()
	}
	return rc
}

// apply writes geography onto every event and browser/OS onto pageviews.
func (rc requestContext) apply(ev *models.RawEvent) {
	ev.Properties.Country = rc.location.Country
	ev.Properties.City = rc.location.City
	if ev.Type == models.EventPageview {
		ev.Properties.Browser = rc.browser
		ev.Properties.OS = rc.os
	}
}
