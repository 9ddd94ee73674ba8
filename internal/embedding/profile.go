package embedding

import "strings"

// Profile describes the candidate the similarity component compares against.
type Profile struct {
	Summary         string   `mapstructure:"summary" validate:"required"`
	PrioritySkills  []string `mapstructure:"priority-skills"`
	SecondarySkills []string `mapstructure:"secondary-skills"`
	TargetRoles     []string `mapstructure:"target-roles"`
}

// Text renders the profile as the single text that gets embedded.
func (p Profile) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Summary))

	section := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n\n")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.Join(items, ", "))
	}
	section("Core skills", p.PrioritySkills)
	section("Secondary skills", p.SecondarySkills)
	section("Target roles", p.TargetRoles)

	return strings.TrimSpace(b.String())
}
