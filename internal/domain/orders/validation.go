package orders

import (
	"time"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
)

func validateWindow(starts time.Time, ends *time.Time) error {
	if ends == nil || starts.IsZero() {
		return nil
	}
	if ends.Before(starts) {
		return apperror.NewDateRangeInvalid(starts, *ends)
	}
	return nil
}

func validateSelection(articleIDs []id.ID) error {
	if len(articleIDs) == 0 {
		return apperror.NewNoArticlesSelected()
	}
	return nil
}

// reconcileLines aligns order lines and subgroup lines with the selection.
//
// Articles that left the selection lose their lines. If any subgroup still
// requests such an article, nothing changes and OrderedArticlesWouldBeDropped
// lists them, unless override is set, in which case those requests are discarded.
// Newly selected articles get an empty line.
func reconcileLines(o *Order, override bool) error {
	selected := id.Set(o.SelectedArticleIDs)

	var blocked []id.ID
	seen := make(map[id.ID]struct{})
	for _, so := range o.SubgroupOrders {
		for _, l := range so.Lines {
			if _, ok := selected[l.ArticleID]; ok || !l.HasRequest() {
				continue
			}
			if _, dup := seen[l.ArticleID]; dup {
				continue
			}
			seen[l.ArticleID] = struct{}{}
			blocked = append(blocked, l.ArticleID)
		}
	}
	if len(blocked) > 0 && !override {
		return apperror.NewArticlesWouldBeDropped(id.Strings(blocked))
	}

	lines := o.Lines[:0]
	present := make(map[id.ID]struct{}, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := selected[l.ArticleID]; ok {
			lines = append(lines, l)
			present[l.ArticleID] = struct{}{}
		}
	}
	for _, a := range o.SelectedArticleIDs {
		if _, ok := present[a]; !ok {
			lines = append(lines, OrderLine{ID: id.New(), ArticleID: a})
		}
	}
	o.Lines = lines

	subgroups := o.SubgroupOrders[:0]
	for _, so := range o.SubgroupOrders {
		kept := so.Lines[:0]
		for _, l := range so.Lines {
			if _, ok := selected[l.ArticleID]; ok {
				kept = append(kept, l)
			}
		}
		so.Lines = kept
		if len(so.Lines) > 0 {
			subgroups = append(subgroups, so)
		}
	}
	o.SubgroupOrders = subgroups

	return nil
}
