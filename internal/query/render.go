package query

import (
	"io"
	"strconv"
	"strings"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
)

// Render writes db as Mangle source, one fact per line, in name order.
func Render(w io.StringWriter, db *factdb.Database) {
	for _, name := range db.RelationNames() {
		rel, _ := db.Relation(name)
		for _, fact := range rel.Facts() {
			writeFact(w, name, fact)
		}
	}
	for _, name := range db.CounterNames() {
		v, _ := db.Counter(name)
		writeFact(w, CounterPredicate, factdb.Fact{factdb.Text(name), factdb.Int(v)})
	}
	for _, name := range db.TableNames() {
		tbl, _ := db.Table(name)
		for i, v := range tbl.Values() {
			fact := factdb.Fact{factdb.Int(int64(i))}
			if v.IsTuple() {
				fact = append(fact, v.Tuple...)
			} else {
				fact = append(fact, factdb.Text(v.Text))
			}
			writeFact(w, name, fact)
		}
	}
}

func writeFact(w io.StringWriter, pred string, fact factdb.Fact) {
	_, _ = w.WriteString(pred)
	_, _ = w.WriteString("(")
	for i, f := range fact {
		if i > 0 {
			_, _ = w.WriteString(", ")
		}
		_, _ = w.WriteString(term(f))
	}
	_, _ = w.WriteString(").\n")
}

func term(f factdb.Field) string {
	switch f.Kind {
	case factdb.KindText:
		return quote(f.Str)
	case factdb.KindBool:
		if f.Num != 0 {
			return "/true"
		}
		return "/false"
	default:
		return strconv.FormatInt(f.Num, 10)
	}
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}
