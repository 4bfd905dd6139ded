package archive

import (
	"path"
	"sort"
	"strings"
)

// LayoutSuffix marks a layout descriptor: <table>_layout.txt.
const LayoutSuffix = "_layout"

// Pair is one table's data file and layout, relative to Workspace.Dir.
type Pair struct {
	Table  string `json:"table"`
	Data   string `json:"data_file"`
	Layout string `json:"layout_file"`
}

// Pairing is the outcome of PairFiles.
type Pairing struct {
	// Pairs is sorted by table name.
	Pairs []Pair
	// Unpaired lists .txt files without a partner and files sharing a table
	// name with another file, sorted.
	Unpaired []string
	// Ignored lists files that are not .txt, sorted.
	Ignored []string
}

// PairFiles matches <table>.txt with <table>_layout.txt by base name,
// ignoring case and directories. The table name is taken from the data file.
func PairFiles(files []string) Pairing {
	type slot struct {
		table, data, layout string
		conflict           []string
	}
	slots := map[string]*slot{}
	get := func(key string) *slot {
		s, ok := slots[key]
		if !ok {
			s = &slot{}
			slots[key] = s
		}
		return s
	}

	var p Pairing
	for _, f := range files {
		base := path.Base(f)
		ext := path.Ext(base)
		if !strings.EqualFold(ext, ".txt") {
			p.Ignored = append(p.Ignored, f)
			continue
		}
		stem := strings.TrimSuffix(base, ext)
		lower := strings.ToLower(stem)

		if strings.HasSuffix(lower, LayoutSuffix) && len(stem) > len(LayoutSuffix) {
			s := get(strings.TrimSuffix(lower, LayoutSuffix))
			if s.layout != "" {
				s.conflict = append(s.conflict, f)
				continue
			}
			s.layout = f
			continue
		}
		s := get(lower)
		if s.data != "" {
			s.conflict = append(s.conflict, f)
			continue
		}
		s.data, s.table = f, stem
	}

	for _, s := range slots {
		p.Unpaired = append(p.Unpaired, s.conflict...)
		switch {
		case s.data != "" && s.layout != "":
			p.Pairs = append(p.Pairs, Pair{Table: s.table, Data: s.data, Layout: s.layout})
		case s.data != "":
			p.Unpaired = append(p.Unpaired, s.data)
		case s.layout != "":
			p.Unpaired = append(p.Unpaired, s.layout)
		}
	}

	sort.Slice(p.Pairs, func(i, j int) bool { return p.Pairs[i].Table < p.Pairs[j].Table })
	sort.Strings(p.Unpaired)
	sort.Strings(p.Ignored)
	return p
}
