package periodontal

import (
	"math"
	"time"

	"dental-clinic/internal/domain/patients"
)

// SitesPerTooth buccal sites: mesial, central, distal.
const SitesPerTooth = 3

const MaxDepth = 15

type Site struct {
	Depth    int  `json:"depth"`
	Bleeding bool `json:"bleeding"`
	Plaque   bool `json:"plaque"`
}

type Tooth struct {
	Number  int                 `json:"number"`
	Missing bool                `json:"missing"`
	Sites   [SitesPerTooth]Site `json:"sites"`
}

type Chart struct {
	Teeth     []Tooth   `json:"teeth"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// EmptyChart has every permanent tooth present with zeroed sites.
func EmptyChart() Chart {
	teeth := patients.PermanentTeeth()
	c := Chart{Teeth: make([]Tooth, 0, len(teeth))}
	for _, n := range teeth {
		c.Teeth = append(c.Teeth, Tooth{Number: n})
	}
	return c
}

type Metrics struct {
	BleedingPct float64 `json:"bleedingPct"`
	PlaquePct   float64 `json:"plaquePct"`
	MeanDepth   float64 `json:"meanDepth"`
	Sites       int     `json:"sites"`
}

// ComputeMetrics scans the sites of present teeth. Values are rounded to one
// decimal; an all-missing chart yields zeros.
func ComputeMetrics(c Chart) Metrics {
	var sites, bleeding, plaque, depth int
	for _, t := range c.Teeth {
		if t.Missing {
			continue
		}
		for _, s := range t.Sites {
			sites++
			depth += s.Depth
			if s.Bleeding {
				bleeding++
			}
			if s.Plaque {
				plaque++
			}
		}
	}
	if sites == 0 {
		return Metrics{}
	}
	n := float64(sites)
	return Metrics{
		BleedingPct: round1(float64(bleeding) / n * 100),
		PlaquePct:   round1(float64(plaque) / n * 100),
		MeanDepth:   round1(float64(depth) / n),
		Sites:       sites,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
