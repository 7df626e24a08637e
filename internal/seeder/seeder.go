// Package seeder generates demo traffic through the regular ingestion
// path, so seeded rows look exactly like production pageviews.
package seeder

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagepulse/internal/locations"
	"pagepulse/internal/pageviews"
	"pagepulse/internal/sites"
)

// Seeder drives synthetic visitor sessions against a registered site.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	SessionCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		SessionCount: sessionCount,
	}
}

// Seed registers the demo site when missing and replays synthetic
// sessions against it over the trailing seven days.
func (s *Seeder) Seed(hostname string) error {
	start := time.Now()
	s.Logger.Info("Seeding demo traffic...",
		slog.String("hostname", hostname),
		slog.Int("sessions", s.SessionCount))

	site, err := s.ensureSite(hostname)
	if err != nil {
		return err
	}

	for i := 0; i < s.SessionCount; i++ {
		if err := s.seedSession(site.Hostname); err != nil {
			return fmt.Errorf("failed to seed session %d: %w", i, err)
		}
	}

	s.Logger.Info("Seeding completed",
		slog.String("hostname", hostname),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Seeder) ensureSite(hostname string) (*sites.Site, error) {
	db := s.DBManager.GetConnection()

	site, err := sites.GetSiteByHostname(db, hostname)
	if err == nil {
		return site, nil
	}

	created := &sites.Site{Name: hostname, Hostname: hostname}
	err = sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		return sites.CreateSite(tx, created)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create demo site: %w", err)
	}
	return created, nil
}

// seedSession replays one visitor journey: a load per page, pings while
// reading, and an exit on the last page.
func (s *Seeder) seedSession(hostname string) error {
	journey := journeys[rand.IntN(len(journeys))]
	ip := randomIP()
	userAgent := userAgents[rand.IntN(len(userAgents))]
	screenSize := screenSizes[rand.IntN(len(screenSizes))]
	referrer := referrers[rand.IntN(len(referrers))]
	geo := geoSignals[rand.IntN(len(geoSignals))]

	// Sessions start somewhere in the last 7 days
	at := time.Now().UTC().
		Add(-time.Duration(rand.IntN(7*24)) * time.Hour).
		Add(-time.Duration(rand.IntN(3600)) * time.Second)

	for i, pathname := range journey {
		load := &pageviews.Input{
			Kind:      pageviews.KindLoad,
			Hostname:  hostname,
			Pathname:  pathname,
			IPAddress: ip,
			UserAgent: userAgent,
			Geo:       geo,
			Timestamp: at,
		}
		if i == 0 && referrer.hostname != "" {
			load.ReferrerHostname = strptr(referrer.hostname)
			load.ReferrerPathname = strptr(referrer.pathname)
		}
		if screenSize != "" {
			load.ScreenSize = strptr(screenSize)
		}
		if err := pageviews.Record(s.DBManager, s.Logger, load); err != nil {
			return err
		}

		// A few pings while the visitor reads
		dwell := 10 + rand.IntN(50)
		for _, offset := range []int{dwell / 2, dwell} {
			ping := &pageviews.Input{
				Kind:            pageviews.KindPing,
				Hostname:        hostname,
				Pathname:        pathname,
				IPAddress:       ip,
				UserAgent:       userAgent,
				Geo:             geo,
				InactiveSeconds: rand.IntN(10),
				Timestamp:       at.Add(time.Duration(offset) * time.Second),
			}
			if err := pageviews.Record(s.DBManager, s.Logger, ping); err != nil {
				return err
			}
		}

		last := i == len(journey)-1
		if last {
			exit := &pageviews.Input{
				Kind:            pageviews.KindExit,
				Hostname:        hostname,
				Pathname:        pathname,
				IPAddress:       ip,
				UserAgent:       userAgent,
				Geo:             geo,
				InactiveSeconds: rand.IntN(10),
				Timestamp:       at.Add(time.Duration(dwell+5) * time.Second),
			}
			if err := pageviews.Record(s.DBManager, s.Logger, exit); err != nil {
				return err
			}
		}

		at = at.Add(time.Duration(dwell+10) * time.Second)
	}

	return nil
}

func randomIP() string {
	// Documentation ranges keep seeded IPs clearly synthetic
	return fmt.Sprintf("203.0.%d.%d", rand.IntN(114), 1+rand.IntN(254))
}

func strptr(s string) *string { return &s }

var journeys = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1"},
	{"/pricing", "/features", "/signup"},
	{"/", "/docs", "/docs/getting-started"},
	{"/", "/signup"},
	{"/blog/article-1", "/about", "/pricing"},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

var screenSizes = []string{
	"1920x1080", "2560x1440", "1366x768", "768x1024", "390x844", "412x915", "",
}

type seedReferrer struct {
	hostname string
	pathname string
}

var referrers = []seedReferrer{
	{},
	{},
	{hostname: "www.google.com", pathname: "/"},
	{hostname: "news.ycombinator.com", pathname: "/item"},
	{hostname: "twitter.com", pathname: "/status"},
	{hostname: "github.com", pathname: "/explore"},
}

var geoSignals = []locations.Signal{
	{},
	{Country: strptr("US"), Region: strptr("CA"), City: strptr("San Francisco")},
	{Country: strptr("DE"), Region: strptr("BE"), City: strptr("Berlin")},
	{Country: strptr("GB"), City: strptr("London")},
	{Country: strptr("JP"), Region: strptr("13"), City: strptr("Tokyo")},
	{Country: strptr("BR")},
}
