// Command genfeed generates synthetic upstream feed fixtures in the
// whitespace-delimited wire format: one month of daily summaries and one
// station table. Output is run through the actual parsers, so a fixture
// that fails to parse never reaches a test suite.
//
// Usage:
//
//	go run ./cmd/genfeed -month 202401 -out testdata
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bizscope/weather-collector/internal/domain"
)

var stationSeeds = []struct {
	id, lon, lat, ko, en string
}{
	{"90", "128.5647", "38.2509", "속초", "Sokcho"},
	{"93", "127.7540", "38.1479", "북춘천", "Bukchuncheon"},
	{"100", "128.7183", "37.6771", "대관령", "Daegwallyeong"},
	{"108", "126.9658", "37.5714", "서울", "Seoul"},
	{"112", "126.6249", "37.4777", "인천", "Incheon"},
	{"133", "127.3721", "36.3720", "대전", "Daejeon"},
	{"143", "128.6522", "35.8779", "대구", "Daegu"},
	{"159", "129.0320", "35.1047", "부산", "Busan"},
	{"184", "126.5294", "33.5141", "제주", "Jeju City Office"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	month := flag.String("month", "", "month to generate (YYYYMM)")
	out := flag.String("out", "testdata", "output directory")
	seed := flag.Int64("seed", 1, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	start, err := time.Parse("200601", *month)
	if err != nil {
		flag.Usage()
		return fmt.Errorf("invalid -month %q: want YYYYMM", *month)
	}

	rng := rand.New(rand.NewSource(*seed))

	daily := dailyFeed(start, rng)
	if _, err := domain.ParseObservations(daily); err != nil {
		return fmt.Errorf("generated daily feed does not parse: %w", err)
	}

	stations := stationFeed()
	if _, err := domain.ParseStations(stations); err != nil {
		return fmt.Errorf("generated station feed does not parse: %w", err)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	dailyPath := filepath.Join(*out, fmt.Sprintf("daily_%s.txt", *month))
	if err := os.WriteFile(dailyPath, []byte(daily), 0o600); err != nil {
		return err
	}
	stationPath := filepath.Join(*out, "stations.txt")
	if err := os.WriteFile(stationPath, []byte(stations), 0o600); err != nil {
		return err
	}

	log.Printf("wrote %s and %s", dailyPath, stationPath)
	return nil
}

// dailyFeed emits one line per station per day of the month, 56 columns
// each, wrapped in the upstream comment frame.
func dailyFeed(start time.Time, rng *rand.Rand) string {
	var b strings.Builder
	b.WriteString("#START7777\n")
	b.WriteString("# " + strings.Join(domain.ObservationColumns, " ") + "\n")

	end := start.AddDate(0, 1, 0)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		for _, s := range stationSeeds {
			b.WriteString(dailyLine(day, s.id, rng))
			b.WriteByte('\n')
		}
	}
	b.WriteString("#7777END\n")
	return b.String()
}

func dailyLine(day time.Time, stn string, rng *rand.Rand) string {
	fields := make([]string, 0, domain.ObservationFieldCount)
	fields = append(fields, day.Format("20060102"), stn)
	for i := 2; i < domain.ObservationFieldCount; i++ {
		// A handful of sentinel values per row, like the real feed.
		if rng.Intn(12) == 0 {
			fields = append(fields, "-9.0")
			continue
		}
		fields = append(fields, fmt.Sprintf("%.1f", rng.Float64()*30-5))
	}
	return strings.Join(fields, " ")
}

func stationFeed() string {
	var b strings.Builder
	b.WriteString("#START7777\n")
	b.WriteString("# STN LON LAT STN_SP HT HT_PA HT_TA HT_WD HT_RN STN_CD STN_KO STN_EN FCT_ID LAW_ID BASIN\n")
	for i, s := range stationSeeds {
		fmt.Fprintf(&b, "%s %s %s 0 %d.%02d %d.0 1.5 10.0 0.6 11 %s %s 109 1111000000 %d\n",
			s.id, s.lon, s.lat, 20+i*7, i*3, 21+i*7, s.ko, s.en, i+1)
	}
	b.WriteString("#7777END\n")
	return b.String()
}
