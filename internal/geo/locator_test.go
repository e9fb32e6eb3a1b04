package geo

import "testing"

func TestLookup_PrivateAddresses(t *testing.T) {
	l, err := NewLocator("")
	if err != nil {
		t.Fatalf("Failed to create locator: %v", err)
	}
	defer l.Close()

	for _, addr := range []string{"192.168.1.10", "10.0.0.1", "172.16.5.5", "127.0.0.1", "169.254.1.1"} {
		loc, err := l.Lookup(addr)
		if err != nil {
			t.Fatalf("Lookup(%s) failed: %v", addr, err)
		}
		if loc.Country != "Private" || loc.CountryCode != "--" {
			t.Errorf("Expected %s classified as private, got %s/%s", addr, loc.Country, loc.CountryCode)
		}
	}
}

func TestLookup_NoDatabase(t *testing.T) {
	l, err := NewLocator("")
	if err != nil {
		t.Fatalf("Failed to create locator: %v", err)
	}
	defer l.Close()

	loc, err := l.Lookup("8.8.8.8")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if loc.Country != "Unknown" || loc.CountryCode != "UN" {
		t.Errorf("Expected Unknown placeholder without a database, got %s/%s", loc.Country, loc.CountryCode)
	}

	// Second lookup served from cache must return the same entry.
	again, err := l.Lookup("8.8.8.8")
	if err != nil {
		t.Fatalf("Cached lookup failed: %v", err)
	}
	if again != loc {
		t.Error("Expected the cached entry to be reused")
	}
}

func TestLookup_InvalidAddress(t *testing.T) {
	l, err := NewLocator("")
	if err != nil {
		t.Fatalf("Failed to create locator: %v", err)
	}
	defer l.Close()

	if _, err := l.Lookup("not-an-ip"); err == nil {
		t.Error("Expected an error for an invalid address")
	}
}

func TestNewLocator_MissingDatabase(t *testing.T) {
	if _, err := NewLocator("/nonexistent/GeoLite2-City.mmdb"); err == nil {
		t.Error("Expected an error for a missing database file")
	}
}
