// Package cdata maps the opaque numeric "cdata" codes sent by the stryder endpoint to semantic
// categories: legend, cosmetic category and, for banner trackers, the stat grouping and game mode.
package cdata

import "strings"

type Category string

const (
	CategoryNone            Category = ""
	CategoryBadge           Category = "badge"
	CategoryCharacter       Category = "character"
	CategoryCharacterFrame  Category = "character_frame"
	CategoryCharacterSkin   Category = "character_skin"
	CategoryCharacterStance Category = "character_stance"
	CategoryIntroQuip       Category = "intro_quip"
	CategoryTracker         Category = "tracker"
)

type Grouping string

const (
	GroupingNone        Grouping = ""
	GroupingDamage      Grouping = "damage"
	GroupingExecutions  Grouping = "executions"
	GroupingGamesPlayed Grouping = "games_played"
	GroupingHeadshots   Grouping = "headshots"
	GroupingKills       Grouping = "kills"
	GroupingRevives     Grouping = "revives"
	GroupingTop3        Grouping = "top_3"
	GroupingUngrouped   Grouping = "ungrouped"
	GroupingWins        Grouping = "wins"
)

type Mode string

const (
	ModeNone         Mode = ""
	ModeArenas       Mode = "arenas"
	ModeBattleRoyale Mode = "battle_royale"
)

type Legend string

const LegendNone Legend = ""

const (
	Bangalore  Legend = "bangalore"
	Bloodhound Legend = "bloodhound"
	Caustic    Legend = "caustic"
	Crypto     Legend = "crypto"
	Fuse       Legend = "fuse"
	Gibraltar  Legend = "gibraltar"
	Horizon    Legend = "horizon"
	Lifeline   Legend = "lifeline"
	Loba       Legend = "loba"
	Mirage     Legend = "mirage"
	Octane     Legend = "octane"
	Pathfinder Legend = "pathfinder"
	Rampart    Legend = "rampart"
	Revenant   Legend = "revenant"
	Seer       Legend = "seer"
	Valkyrie   Legend = "valkyrie"
	Wattson    Legend = "wattson"
	Wraith     Legend = "wraith"
)

// Legends is the known roster, in the order keys are matched against.
var Legends = []Legend{ //nolint:gochecknoglobals
	Bangalore, Bloodhound, Caustic, Crypto, Fuse, Gibraltar, Horizon, Lifeline, Loba,
	Mirage, Octane, Pathfinder, Rampart, Revenant, Seer, Valkyrie, Wattson, Wraith,
}

type categoryPrefix struct {
	prefix   string
	category Category
}

// Ordered, first match wins. Intro quips and skins must be checked before the generic
// character prefix.
var categoryPrefixes = []categoryPrefix{ //nolint:gochecknoglobals
	{prefix: "gcard_tracker_", category: CategoryTracker},
	{prefix: "character_intro_quip_", category: CategoryIntroQuip},
	{prefix: "gcard_badge_", category: CategoryBadge},
	{prefix: "character_skin_", category: CategoryCharacterSkin},
	{prefix: "gcard_frame_", category: CategoryCharacterFrame},
	{prefix: "gcard_stance_", category: CategoryCharacterStance},
	{prefix: "character_", category: CategoryCharacter},
}

type groupingRule struct {
	grouping Grouping
	match    func(key string) bool
}

func contains(token string) func(string) bool {
	return func(key string) bool { return strings.Contains(key, token) }
}

func suffix(token string) func(string) bool {
	return func(key string) bool { return strings.HasSuffix(key, token) }
}

// Ordered, first match wins. Historical data was classified with this exact precedence.
var groupingRules = []groupingRule{ //nolint:gochecknoglobals
	{grouping: GroupingKills, match: contains("_kills")},
	{grouping: GroupingDamage, match: contains("_damage")},
	{grouping: GroupingWins, match: func(key string) bool {
		return strings.HasSuffix(key, "_win") || strings.HasSuffix(key, "_wins") ||
			strings.Contains(key, "_win_") || strings.Contains(key, "_wins_")
	}},
	{grouping: GroupingHeadshots, match: suffix("_headshots")},
	{grouping: GroupingExecutions, match: suffix("_executions")},
	{grouping: GroupingRevives, match: suffix("_revives")},
	{grouping: GroupingGamesPlayed, match: suffix("_games_played")},
	{grouping: GroupingTop3, match: suffix("_top_3")},
}

// Classification is the result of classifying a single cdata key. Grouping and Mode are only
// set for the tracker category.
type Classification struct {
	Category Category
	Legend   Legend
	Grouping Grouping
	Mode     Mode
}

// Classify is total: keys matching no rule resolve to the neutral values instead of failing.
func Classify(key string) Classification {
	result := Classification{
		Category: ClassifyCategory(key),
		Legend:   ClassifyLegend(key),
	}

	if result.Category == CategoryTracker {
		result.Grouping = ClassifyGrouping(key)
		result.Mode = ClassifyMode(key)
	}

	return result
}

func ClassifyCategory(key string) Category {
	for _, rule := range categoryPrefixes {
		if strings.HasPrefix(key, rule.prefix) {
			return rule.category
		}
	}

	return CategoryNone
}

// ClassifyLegend matches the `_<legend>_` token. Most keys are legend agnostic and return LegendNone.
func ClassifyLegend(key string) Legend {
	for _, legend := range Legends {
		if strings.Contains(key, "_"+string(legend)+"_") {
			return legend
		}
	}

	return LegendNone
}

func ClassifyGrouping(key string) Grouping {
	for _, rule := range groupingRules {
		if rule.match(key) {
			return rule.grouping
		}
	}

	return GroupingUngrouped
}

func ClassifyMode(key string) Mode {
	if strings.Contains(key, "_arenas_") {
		return ModeArenas
	}

	return ModeBattleRoyale
}

// ParseLegend resolves a legend from its canonical lowercase name.
func ParseLegend(name string) Legend {
	for _, legend := range Legends {
		if string(legend) == name {
			return legend
		}
	}

	return LegendNone
}
