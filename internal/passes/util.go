package passes

import (
	"sort"

	"gosynth/internal/rtlil"
)

func sortIds(ids []rtlil.Id) {
	sort.Strings(ids)
}
