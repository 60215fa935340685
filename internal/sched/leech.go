package sched

import "github.com/vytor/cardsched/internal/models"

// isLeechLapse reports whether lapses hits the leech threshold: first at
// fails, then every fails/2 lapses after that.
func isLeechLapse(lapses, fails int) bool {
	if fails <= 0 || lapses < fails {
		return false
	}
	return (lapses-fails)%max(fails/2, 1) == 0
}

// checkLeech tags the note of a card that just lapsed into leech territory
// and suspends the card when the options say so. With detach set, the card
// also leaves its filtered deck before it is suspended.
func (s *Scheduler) checkLeech(a *answerTx, detach bool) bool {
	c := a.card
	conf := s.lapseConf(*c)
	if !isLeechLapse(c.Lapses, conf.LeechFails) {
		return false
	}
	if a.note.AddTag(models.LeechTag) {
		a.noteDirty = true
	}
	if conf.LeechAction == models.LeechSuspend {
		if detach {
			if c.OriginalDue != 0 {
				c.Due = c.OriginalDue
			}
			c.ClearFiltered()
		}
		c.Queue = models.QueueSuspended
	}
	a.leech = true
	return true
}
