package pipeline

import (
	"github.com/nao1215/sysdump/internal/model"
)

// Sections with special title handling.
const (
	SectionIPC     = "ipc"
	SectionAbility = "ability"
	SectionMemory  = "memory"
)

// GroupTitler inserts section title rows into the buffer.
// The driver calls it only when a Producer enters a section different from
// the current one; GroupTitler applies the suppression rules on top.
type GroupTitler struct {
	// untitled holds sections that never get a title.
	untitled map[string]bool
}

// NewGroupTitler creates a GroupTitler with the default suppression rules.
func NewGroupTitler() *GroupTitler {
	return &GroupTitler{
		untitled: map[string]bool{
			SectionIPC:     true,
			SectionAbility: true,
		},
	}
}

// ShouldTitle reports whether entering section produces a title row.
// The memory section renders without framing when no pid is targeted or
// when periodic sampling is on.
func (g *GroupTitler) ShouldTitle(section string, params model.Params) bool {
	if section == "" || g.untitled[section] {
		return false
	}
	if section == SectionMemory && (params.Pid <= 0 || params.TimeInterval > 0) {
		return false
	}
	return true
}

// MaybeInsertTitle appends the title rows for section if the rules allow it.
// It returns true when a title was written.
func (g *GroupTitler) MaybeInsertTitle(section string, buf *model.ResultBuffer, params model.Params) bool {
	if !g.ShouldTitle(section, params) {
		return false
	}
	buf.AppendRows(model.TitleRows(section)...)
	return true
}
