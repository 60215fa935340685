package sqlite

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/search"
)

type notExpr struct {
	inner squirrel.Sqlizer
}

func (n notExpr) ToSql() (string, []any, error) {
	sqlText, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sqlText + ")", args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// globToLike turns a '*' wildcard pattern into a LIKE pattern.
func globToLike(s string) string {
	return strings.ReplaceAll(likeEscaper.Replace(s), "*", "%")
}

func compileSearch(node search.Node, opts repository.FindOptions) (squirrel.Sqlizer, error) {
	switch n := node.(type) {
	case search.And:
		out := squirrel.And{}
		for _, child := range n.Nodes {
			s, err := compileSearch(child, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case search.Or:
		out := squirrel.Or{}
		for _, child := range n.Nodes {
			s, err := compileSearch(child, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case search.Not:
		s, err := compileSearch(n.Node, opts)
		if err != nil {
			return nil, err
		}
		return notExpr{inner: s}, nil
	case search.Text:
		return squirrel.Expr(`n.flds LIKE ? ESCAPE '\'`, "%"+globToLike(n.Value)+"%"), nil
	case search.Deck:
		if strings.EqualFold(n.Name, "filtered") {
			return squirrel.NotEq{"c.odid": 0}, nil
		}
		pattern := globToLike(n.Name)
		children := pattern + models.DeckSeparator + "%"
		sub := `SELECT id FROM decks WHERE name LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'`
		return squirrel.Expr("(c.did IN ("+sub+") OR c.odid IN ("+sub+"))", pattern, children, pattern, children), nil
	case search.Tag:
		return squirrel.Expr(`n.tags LIKE ? ESCAPE '\'`, "% "+globToLike(n.Name)+" %"), nil
	case search.State:
		return compileState(n.Kind, opts)
	case search.Flag:
		return squirrel.Expr("(c.flags & 7) = ?", n.Value), nil
	case search.Ordinal:
		return squirrel.Eq{"c.ord": n.Value - 1}, nil
	case search.NoteID:
		return squirrel.Eq{"c.nid": n.Value}, nil
	case search.Added:
		cutoff := (opts.DayCutoff - int64(n.Days)*86400) * 1000
		return squirrel.Gt{"c.id": cutoff}, nil
	case search.Prop:
		return compileProp(n, opts)
	default:
		return nil, fmt.Errorf("unsupported search node %T", node)
	}
}

func compileState(kind search.StateKind, opts repository.FindOptions) (squirrel.Sqlizer, error) {
	switch kind {
	case search.StateNew:
		return squirrel.Eq{"c.type": models.CardTypeNew}, nil
	case search.StateLearn:
		return squirrel.Eq{"c.queue": []models.Queue{models.QueueLearning, models.QueueDayLearning}}, nil
	case search.StateReview:
		return squirrel.Eq{"c.type": []models.CardType{models.CardTypeReview, models.CardTypeRelearning}}, nil
	case search.StateSuspended:
		return squirrel.Eq{"c.queue": models.QueueSuspended}, nil
	case search.StateBuried:
		return squirrel.Eq{"c.queue": []models.Queue{models.QueueSchedBuried, models.QueueUserBuried}}, nil
	case search.StateDue:
		return squirrel.Or{
			squirrel.And{
				squirrel.Eq{"c.queue": []models.Queue{models.QueueReview, models.QueueDayLearning}},
				squirrel.LtOrEq{"c.due": opts.Today},
			},
			squirrel.And{
				squirrel.Eq{"c.queue": models.QueueLearning},
				squirrel.LtOrEq{"c.due": opts.DayCutoff},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported state %q", kind)
	}
}

var propColumns = map[string]string{
	"ivl":    "c.ivl",
	"reps":   "c.reps",
	"lapses": "c.lapses",
	"ease":   "c.factor",
}

func compileProp(p search.Prop, opts repository.FindOptions) (squirrel.Sqlizer, error) {
	switch p.Op {
	case "<", ">", "<=", ">=", "=", "!=":
	default:
		return nil, fmt.Errorf("unsupported comparison %q", p.Op)
	}
	if p.Field == "due" {
		// Relative to today, and only meaningful for day-scheduled cards.
		return squirrel.And{
			squirrel.Eq{"c.queue": []models.Queue{models.QueueReview, models.QueueDayLearning}},
			squirrel.Expr("c.due "+p.Op+" ?", int64(opts.Today)+int64(p.Value)),
		}, nil
	}
	col, ok := propColumns[p.Field]
	if !ok {
		return nil, fmt.Errorf("unsupported property %q", p.Field)
	}
	value := p.Value
	if p.Field == "ease" {
		value *= 1000
	}
	return squirrel.Expr(col+" "+p.Op+" ?", value), nil
}

func orderForFilter(b squirrel.SelectBuilder, opts repository.FindOptions) squirrel.SelectBuilder {
	switch opts.Order {
	case models.FilterOrderOldestSeen:
		return b.OrderBy("(SELECT MAX(id) FROM revlog WHERE cid = c.id)")
	case models.FilterOrderRandom:
		return b.OrderBy("random()")
	case models.FilterOrderIntervalAsc:
		return b.OrderBy("c.ivl")
	case models.FilterOrderIntervalDesc:
		return b.OrderBy("c.ivl DESC")
	case models.FilterOrderLapses:
		return b.OrderBy("c.lapses DESC")
	case models.FilterOrderAdded:
		return b.OrderBy("n.id", "c.ord")
	case models.FilterOrderAddedDesc:
		return b.OrderBy("n.id DESC", "c.ord")
	case models.FilterOrderDuePriority:
		return b.OrderByClause(
			"(CASE WHEN c.queue = ? AND c.due <= ? THEN (c.ivl / CAST(? - c.due + 0.001 AS REAL)) ELSE 100000 + c.due END)",
			models.QueueReview, opts.Today, opts.Today,
		)
	default:
		return b.OrderBy("c.due", "c.ord")
	}
}
