package models

// AvatarDefinition names an avatar and how many evolution forms its artwork
// ships with. The assets themselves live in the mobile client; the server only
// needs the form counts to bound evolution.
type AvatarDefinition struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Forms int    `json:"forms"`
}

// Avatars is the catalog the client picks from, in display order.
var Avatars = []AvatarDefinition{
	{ID: "plant-1", Name: "Plant", Forms: 12},
	{ID: "flower-1", Name: "Flower", Forms: 10},
	{ID: "airplane-1", Name: "Airplane", Forms: 10},
	{ID: "earth-1", Name: "Earth", Forms: 10},
	{ID: "robot-1", Name: "Robot", Forms: 10},
	{ID: "tree-1", Name: "Tree", Forms: 8},
	{ID: "pink-gem-1", Name: "Pink Gem", Forms: 8},
}

// AvatarByID looks up a catalog entry, returning nil for unknown ids.
func AvatarByID(id string) *AvatarDefinition {
	for i := range Avatars {
		if Avatars[i].ID == id {
			return &Avatars[i]
		}
	}
	return nil
}

// LevelCurve maps cumulative experience to an avatar level. Thresholds cover
// the hand-tuned early levels; past the last one, levels continue every
// ExtraStep check-ins. The curve must be ascending so progress fractions stay
// well-defined.
type LevelCurve struct {
	Thresholds []int
	ExtraStep  int
}

// DefaultLevelCurve matches the production tuning; override via config.
func DefaultLevelCurve() LevelCurve {
	return LevelCurve{
		Thresholds: []int{0, 1, 3, 5, 8, 11, 14, 18, 22, 26, 30},
		ExtraStep:  2,
	}
}

// LevelProgress is the rendered position on the curve.
type LevelProgress struct {
	Level          int     `json:"level"`
	CurrentLevelAt int     `json:"current_level_at"`
	NextLevelAt    int     `json:"next_level_at"`
	Progress       float64 `json:"progress"`
	Total          int     `json:"total"`
}

// Progress computes the level reached at the given cumulative experience,
// along with the experience bounds of the current level. Negative experience
// clamps to zero. NextLevelAt is always strictly greater than CurrentLevelAt.
func (c LevelCurve) Progress(experience int) LevelProgress {
	total := experience
	if total < 0 {
		total = 0
	}

	thresholds := c.Thresholds
	step := c.ExtraStep
	if len(thresholds) < 2 || step <= 0 {
		d := DefaultLevelCurve()
		thresholds, step = d.Thresholds, d.ExtraStep
	}

	baseMax := thresholds[len(thresholds)-1]

	if total >= baseMax {
		extra := (total - baseMax) / step
		currentAt := baseMax + extra*step
		return progressAt(len(thresholds)+extra, currentAt, currentAt+step, total)
	}

	// level L is reached at thresholds[L-1]
	level := 1
	for i := len(thresholds) - 1; i >= 0; i-- {
		if total >= thresholds[i] {
			level = i + 1
			break
		}
	}
	return progressAt(level, thresholds[level-1], thresholds[level], total)
}

func progressAt(level, currentAt, nextAt, total int) LevelProgress {
	p := LevelProgress{
		Level:          level,
		CurrentLevelAt: currentAt,
		NextLevelAt:    nextAt,
		Total:          total,
	}
	if nextAt > currentAt {
		p.Progress = float64(total-currentAt) / float64(nextAt-currentAt)
	} else {
		p.Progress = 1
	}
	return p
}

// CanEvolve reports whether a participant may advance their current avatar by
// one form: some experience must exist, it must exceed the watermark written
// at the previous evolution, and the avatar must have forms left.
func CanEvolve(p *Participant, avatar *AvatarDefinition, effectiveExperience int) bool {
	if avatar == nil || avatar.Forms <= 0 {
		return false
	}
	if effectiveExperience <= 0 {
		return false
	}
	if p.LastEvolvedExperience >= effectiveExperience {
		return false
	}
	return p.FormLevelFor(avatar.ID) < avatar.Forms
}
