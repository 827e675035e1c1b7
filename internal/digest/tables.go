package digest

import (
	"fmt"

	"github.com/playlens/pulse/internal/models"
)

type insightCopy struct {
	summary        string
	recommendation string
}

var pillarNames = map[models.Pillar]string{
	models.PillarEngagement:      "engagement",
	models.PillarRetention:       "retention",
	models.PillarMonetization:    "monetization",
	models.PillarStore:           "store performance",
	models.PillarUserAcquisition: "user acquisition",
	models.PillarTechHealth:      "tech health",
	models.PillarSocial:          "social",
}

func pillarDisplayName(p models.Pillar) string {
	if name, ok := pillarNames[p]; ok {
		return name
	}
	return string(p)
}

func trendLabel(t models.Trend) string {
	switch t {
	case models.TrendUp:
		return "rising interest"
	case models.TrendDown:
		return "fading interest"
	default:
		return "steady interest"
	}
}

// insightTable holds the static per-pillar, per-trend digest copy. Any
// combination missing here falls back to a generic template, never an error.
var insightTable = map[models.Pillar]map[models.Trend]insightCopy{
	models.PillarEngagement: {
		models.TrendUp: {
			summary:        "Your questions about session behavior and feature usage picked up through the week.",
			recommendation: "Break engagement down by feature to find what is pulling players in.",
		},
		models.TrendDown: {
			summary:        "You asked about engagement early in the week but attention has moved elsewhere.",
			recommendation: "Schedule a recurring engagement check so the signal does not go cold.",
		},
		models.TrendStable: {
			summary:        "Engagement stayed a steady part of your questions this week.",
			recommendation: "Compare DAU patterns across cohorts to sharpen the picture.",
		},
	},
	models.PillarRetention: {
		models.TrendUp: {
			summary:        "Churn and comeback questions accelerated over the week.",
			recommendation: "Run a cohort retention analysis before making changes to early-game pacing.",
		},
		models.TrendDown: {
			summary:        "Retention questions tapered off toward the end of the week.",
			recommendation: "Revisit your D1/D7/D30 dashboard; retention drift rarely announces itself.",
		},
		models.TrendStable: {
			summary:        "Retention remained a consistent theme in your questions.",
			recommendation: "Segment churners by acquisition source to find where retention breaks.",
		},
	},
	models.PillarMonetization: {
		models.TrendUp: {
			summary:        "Revenue and conversion questions grew as the week went on.",
			recommendation: "Look at purchase funnels for your top spender segment while the question is hot.",
		},
		models.TrendDown: {
			summary:        "Monetization questions slowed down in the second half of the week.",
			recommendation: "Check whether ARPDAU shifted; quiet weeks can hide revenue drift.",
		},
		models.TrendStable: {
			summary:        "Monetization held a steady share of your attention.",
			recommendation: "Test one pricing hypothesis from this week's questions.",
		},
	},
	models.PillarStore: {
		models.TrendUp: {
			summary:        "Store visibility and conversion questions ramped up this week.",
			recommendation: "Audit your store listing against the top competitors in your category.",
		},
		models.TrendDown: {
			summary:        "Store questions dropped off after an early spike.",
			recommendation: "Keep an eye on conversion rate; store pages decay without refreshes.",
		},
		models.TrendStable: {
			summary:        "Store performance stayed quietly on your radar.",
			recommendation: "A/B test one store asset to turn curiosity into signal.",
		},
	},
	models.PillarUserAcquisition: {
		models.TrendUp: {
			summary:        "Acquisition and campaign questions climbed through the week.",
			recommendation: "Compare CPI against LTV per channel before scaling spend.",
		},
		models.TrendDown: {
			summary:        "UA questions faded in the back half of the week.",
			recommendation: "Confirm channel mix is still healthy before the next campaign cycle.",
		},
		models.TrendStable: {
			summary:        "User acquisition kept a steady place in your questions.",
			recommendation: "Break down installs by creative to find quiet winners.",
		},
	},
	models.PillarTechHealth: {
		models.TrendUp: {
			summary:        "Crash, latency and stability questions increased this week.",
			recommendation: "Prioritize a stability pass on the devices generating the most reports.",
		},
		models.TrendDown: {
			summary:        "Tech health questions wound down, hopefully because things got fixed.",
			recommendation: "Verify crash-free rate held after the recent changes.",
		},
		models.TrendStable: {
			summary:        "Tech health questions held steady through the week.",
			recommendation: "Track frame-time percentiles, not just averages, for the full story.",
		},
	},
	models.PillarSocial: {
		models.TrendUp: {
			summary:        "Questions about guilds, friends and virality picked up momentum.",
			recommendation: "Measure k-factor on the social features your questions focused on.",
		},
		models.TrendDown: {
			summary:        "Social questions cooled off through the week.",
			recommendation: "Check whether social feature usage dipped alongside your interest.",
		},
		models.TrendStable: {
			summary:        "Social stayed a constant thread in your questions.",
			recommendation: "Map which social loops correlate with retention for your game.",
		},
	},
}

func lookupInsight(p models.Pillar, t models.Trend) insightCopy {
	if byTrend, ok := insightTable[p]; ok {
		if c, ok := byTrend[t]; ok {
			return c
		}
	}
	return insightCopy{
		summary:        fmt.Sprintf("Your questions touched %s with %s this week.", pillarDisplayName(p), trendLabel(t)),
		recommendation: fmt.Sprintf("Keep an eye on %s metrics next week.", pillarDisplayName(p)),
	}
}
