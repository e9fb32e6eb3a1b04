package geo

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"NetFlowScope/internal/model"
)

const unknown = "Unknown"

// Locator resolves addresses against a local GeoLite2 City database with a
// positive and negative cache. It is queried lazily when rendering an
// address and never on the packet ingestion path.
type Locator struct {
	reader *geoip2.Reader

	mu    sync.RWMutex
	cache map[string]*model.Location
}

// NewLocator opens the MaxMind database at path. An empty path yields a
// locator that answers Unknown for every public address, so the rest of
// the system degrades gracefully without the database file.
func NewLocator(path string) (*Locator, error) {
	l := &Locator{cache: make(map[string]*model.Location)}
	if path == "" {
		return l, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	l.reader = reader
	return l, nil
}

// Lookup resolves one address. Private, loopback and link-local addresses
// short-circuit without touching the database; misses are cached so a busy
// unknown address is resolved once.
func (l *Locator) Lookup(addr string) (*model.Location, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}

	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return &model.Location{Addr: addr, Country: "Private", CountryCode: "--"}, nil
	}

	l.mu.RLock()
	cached, ok := l.cache[addr]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	loc := l.resolve(addr, ip)

	l.mu.Lock()
	l.cache[addr] = loc
	l.mu.Unlock()
	return loc, nil
}

func (l *Locator) resolve(addr string, ip net.IP) *model.Location {
	loc := &model.Location{
		Addr:        addr,
		Country:     unknown,
		CountryCode: "UN",
		Region:      unknown,
		City:        unknown,
		Timezone:    unknown,
	}
	if l.reader == nil {
		return loc
	}

	record, err := l.reader.City(ip)
	if err != nil {
		// Address not in the database; the Unknown placeholder is
		// cached as a negative entry.
		return loc
	}

	if name := record.Country.Names["en"]; name != "" {
		loc.Country = name
	}
	if record.Country.IsoCode != "" {
		loc.CountryCode = record.Country.IsoCode
	}
	if len(record.Subdivisions) > 0 {
		if name := record.Subdivisions[0].Names["en"]; name != "" {
			loc.Region = name
		}
	}
	if name := record.City.Names["en"]; name != "" {
		loc.City = name
	}
	loc.Latitude = record.Location.Latitude
	loc.Longitude = record.Location.Longitude
	if record.Location.TimeZone != "" {
		loc.Timezone = record.Location.TimeZone
	}
	return loc
}

// Close releases the database reader.
func (l *Locator) Close() error {
	if l.reader != nil {
		return l.reader.Close()
	}
	return nil
}
