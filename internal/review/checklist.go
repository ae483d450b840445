package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChecklistItemType distinguishes a checklist entry for a modified file
// from one introduced by the task.
type ChecklistItemType string

const (
	ChecklistItemModified ChecklistItemType = "modified"
	ChecklistItemCreated  ChecklistItemType = "created"
)

// ChecklistItem is one entry in review-checklist.json, produced by the
// blueprint stage and consumed by the checklist-completion stage (§4.4.3).
type ChecklistItem struct {
	ID          string            `json:"id"`
	File        string            `json:"file"`
	Lines       string            `json:"lines,omitempty"`
	Type        ChecklistItemType `json:"type"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Reviewed    bool              `json:"reviewed"`
}

// ChecklistResult summarizes a checklist-completion pass.
type ChecklistResult struct {
	Success   bool
	Completed int
	Total     int
}

// parseChecklist unmarshals review-checklist.json's raw bytes. A missing or
// empty checklist is represented by a nil slice, not an error — callers
// treat that as "skip the checklist stage" per §4.4.3.
func parseChecklist(data []byte) ([]ChecklistItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []ChecklistItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// fileChecklistGroup is one file's checklist items, in declaration order.
type fileChecklistGroup struct {
	File  string
	Items []ChecklistItem
}

// groupChecklistByFile groups items by file for prompt embedding, per
// §4.4.3's "grouped by file" instruction, preserving each file's first
// appearance order (a plain map would not, since Go map iteration order is
// unspecified).
func groupChecklistByFile(items []ChecklistItem) []fileChecklistGroup {
	index := make(map[string]int)
	var groups []fileChecklistGroup
	for _, item := range items {
		if i, ok := index[item.File]; ok {
			groups[i].Items = append(groups[i].Items, item)
			continue
		}
		index[item.File] = len(groups)
		groups = append(groups, fileChecklistGroup{File: item.File, Items: []ChecklistItem{item}})
	}
	return groups
}

// formatChecklistByFile renders grouped checklist items as the markdown
// body embedded in the checklist-completion prompt (§4.4.3), one heading
// per file and one checkbox line per item.
func formatChecklistByFile(items []ChecklistItem) string {
	groups := groupChecklistByFile(items)
	if len(groups) == 0 {
		return "(no items)"
	}

	var sb strings.Builder
	for _, g := range groups {
		sb.WriteString("### " + g.File + "\n")
		for _, item := range g.Items {
			box := " "
			if item.Reviewed {
				box = "x"
			}
			fmt.Fprintf(&sb, "- [%s] %s (%s): %s", box, item.ID, item.Category, item.Description)
			if item.Lines != "" {
				sb.WriteString(" [" + item.Lines + "]")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// countReviewed returns how many items have Reviewed == true, alongside the
// total item count.
func countReviewed(items []ChecklistItem) (completed, total int) {
	total = len(items)
	for _, item := range items {
		if item.Reviewed {
			completed++
		}
	}
	return completed, total
}
