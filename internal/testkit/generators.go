// Package testkit generates synthetic datasets for tests, demos, and
// the samples command.
package testkit

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Generator produces deterministic synthetic CSV datasets
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed so fixtures are
// reproducible across runs
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// TimeseriesCSV emits a daily revenue/dau series with a step change of
// stepPct percent at the given day index
func (g *Generator) TimeseriesCSV(days int, base float64, stepPct float64, stepAt int) []byte {
	var b strings.Builder
	b.WriteString("date,revenue,dau,conversion_rate\n")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		value := base
		if i >= stepAt {
			value = base * (1 + stepPct/100)
		}
		noise := g.rng.Float64()*0.01 - 0.005
		dau := 1000 + g.rng.Intn(50)
		rate := 4.5 + g.rng.Float64()*0.4
		fmt.Fprintf(&b, "%s,%.2f,%d,%.2f\n",
			start.AddDate(0, 0, i).Format("2006-01-02"), value*(1+noise), dau, rate)
	}
	return []byte(b.String())
}

// ExperimentCSV emits per-user experiment rows with the given arm means
func (g *Generator) ExperimentCSV(controlMean, testMean float64, perArm int) []byte {
	var b strings.Builder
	b.WriteString("variant,conversion_rate,revenue\n")
	emit := func(variant string, mean float64) {
		for i := 0; i < perArm; i++ {
			value := mean + g.rng.NormFloat64()*0.5
			revenue := 20 + g.rng.NormFloat64()*4
			fmt.Fprintf(&b, "%s,%.3f,%.2f\n", variant, value, revenue)
		}
	}
	emit("control", controlMean)
	emit("treatment", testMean)
	return []byte(b.String())
}

// EventLevelCSV emits raw event rows: one row per event with a
// timestamp, actor, value, and platform dimension
func (g *Generator) EventLevelCSV(days, usersPerDay, eventsPerUser int) []byte {
	var b strings.Builder
	b.WriteString("timestamp,user_id,revenue,platform\n")
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	platforms := []string{"ios", "android"}
	for d := 0; d < days; d++ {
		for u := 0; u < usersPerDay; u++ {
			user := fmt.Sprintf("user_%d_%d", d, u)
			platform := platforms[u%len(platforms)]
			for e := 0; e < eventsPerUser; e++ {
				ts := start.AddDate(0, 0, d).Add(time.Duration(g.rng.Intn(86400)) * time.Second)
				fmt.Fprintf(&b, "%s,%s,%.2f,%s\n",
					ts.Format("2006-01-02 15:04:05"), user, 5+g.rng.Float64()*10, platform)
			}
		}
	}
	return []byte(b.String())
}

// MessyCSV emits a file with the usual export damage: currency
// formatting, percent suffixes, a duplicate column name, and missing
// tokens
func (g *Generator) MessyCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("Date,Revenue ($),Conversion %,Region,Revenue ($)\n")
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	regions := []string{"NA", "EU", "APAC"}
	for i := 0; i < rows; i++ {
		revenue := fmt.Sprintf("\"$%s\"", withThousands(1000+g.rng.Intn(9000)))
		conversion := fmt.Sprintf("%.1f%%", 2+g.rng.Float64()*6)
		region := regions[i%len(regions)]
		if i%11 == 10 {
			region = "N/A"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s,%d\n",
			start.AddDate(0, 0, i).Format("01/02/2006"), revenue, conversion, region, 500+g.rng.Intn(500))
	}
	return []byte(b.String())
}

func withThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	return s[:len(s)-3] + "," + s[len(s)-3:]
}
